package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/lumina/internal/config"
	"github.com/kalambet/lumina/internal/vault"
)

// --- contact ---

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Submit a project inquiry",
	Long: `Submit a project inquiry and print the generated lead intelligence.

Examples:
  lumina contact --name "Ada" --age 36 --email ada@example.com --phone "+91 98765 43210" \
    --plans "Boutique hotel group" --idea "Immersive booking flow" --plan premium
  lumina contact ... --attachment ./business-plan.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		form, err := contactFormFromFlags(cmd)
		if err != nil {
			return err
		}
		attachment, _ := cmd.Flags().GetString("attachment")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		inq, err := submitContact(cmd.Context(), client, form, attachment)
		if err != nil {
			return err
		}

		printSuccess("Inquiry %s received", inq.ID)
		if in := inq.Intelligence; in != nil {
			printStatus("Priority", "%s", in.Priority)
			printStatus("Analysis", "%s", in.IndustryAnalysis)
			for i, step := range in.SuggestedRoadmap {
				printStatus(fmt.Sprintf("Step %d", i+1), "%s", step)
			}
		}
		return nil
	},
}

func contactFormFromFlags(cmd *cobra.Command) (vault.ContactForm, error) {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return strings.TrimSpace(v)
	}
	form := vault.ContactForm{
		Name:          get("name"),
		Age:           get("age"),
		Email:         get("email"),
		Phone:         get("phone"),
		BusinessPlans: get("plans"),
		WebsiteIdea:   get("idea"),
		SelectedPlan:  get("plan"),
	}
	var missing []string
	for _, f := range []struct{ flag, value string }{
		{"name", form.Name}, {"age", form.Age}, {"email", form.Email}, {"phone", form.Phone}, {"idea", form.WebsiteIdea},
	} {
		if f.value == "" {
			missing = append(missing, "--"+f.flag)
		}
	}
	if form.BusinessPlans == "" && get("attachment") == "" {
		missing = append(missing, "--plans or --attachment")
	}
	if len(missing) > 0 {
		return form, fmt.Errorf("%s required", strings.Join(missing, ", "))
	}
	return form, nil
}

type contactRequest struct {
	vault.ContactForm
	Attachment string `json:"attachment,omitempty"`
}

func submitContact(ctx context.Context, c *apiClient, form vault.ContactForm, attachmentPath string) (vault.Inquiry, error) {
	req := contactRequest{ContactForm: form}
	if attachmentPath != "" {
		data, err := os.ReadFile(attachmentPath)
		if err != nil {
			return vault.Inquiry{}, fmt.Errorf("reading attachment: %w", err)
		}
		req.Attachment = base64.StdEncoding.EncodeToString(data)
	}

	resp, err := c.post(ctx, "/contact", req)
	if err != nil {
		return vault.Inquiry{}, err
	}
	var inq vault.Inquiry
	if err := decodeJSON(resp, &inq); err != nil {
		return vault.Inquiry{}, err
	}
	return inq, nil
}

func init() {
	contactCmd.Flags().String("name", "", "your name")
	contactCmd.Flags().String("age", "", "your age")
	contactCmd.Flags().String("email", "", "contact email")
	contactCmd.Flags().String("phone", "", "contact phone")
	contactCmd.Flags().String("plans", "", "business plans")
	contactCmd.Flags().String("idea", "", "website idea")
	contactCmd.Flags().String("plan", "", "pricing plan (regular, advance, premium)")
	contactCmd.Flags().String("attachment", "", "business plan PDF")
}

// --- login / logout ---

type loginEvent struct {
	State string   `json:"state"`
	Log   []string `json:"log"`
}

type loginComplete struct {
	Welcome   string            `json:"welcomeMessage"`
	Session   vault.UserSession `json:"userProfile"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the client dashboard",
	Long: `Sign in to the client dashboard. The session token is stored in the data
directory and used by the dashboard commands.

Examples:
  lumina login --provider Google
  lumina login --email ada@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")
		email, _ := cmd.Flags().GetString("email")
		if provider == "" && email == "" {
			return fmt.Errorf("one of --provider or --email is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		done, err := runLogin(cmd.Context(), client, provider, email)
		if err != nil {
			return err
		}
		if err := writeSessionToken(client.dataDir, done.Token); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}

		printSuccess("%s", done.Welcome)
		printStatus("Name", "%s", done.Session.Name)
		printStatus("Role", "%s", done.Session.Role)
		printStatus("Clearance", "%s", done.Session.Clearance)
		printStatus("Lumina ID", "%s", done.Session.Token)
		printStatus("Expires", "%s", done.ExpiresAt.Local().Format(time.RFC1123))
		return nil
	},
}

// runLogin streams the handshake, printing each new log line.
func runLogin(ctx context.Context, c *apiClient, provider, email string) (loginComplete, error) {
	resp, err := c.post(ctx, "/auth/login", map[string]string{"provider": provider, "email": email})
	if err != nil {
		return loginComplete{}, err
	}

	var done loginComplete
	var shown int
	err = readEvents(resp, func(event string, data []byte) error {
		switch event {
		case "state":
			var ev loginEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return err
			}
			// The log keeps a sliding window of recent lines.
			if shown > len(ev.Log) {
				shown = 0
			}
			for _, line := range ev.Log[shown:] {
				printStep("%s", strings.TrimPrefix(line, "> "))
			}
			shown = len(ev.Log)
		case "session":
			return json.Unmarshal(data, &done)
		}
		return nil
	})
	if err != nil {
		return loginComplete{}, err
	}
	if done.Token == "" {
		return loginComplete{}, fmt.Errorf("login stream ended without a session")
	}
	return done, nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/auth/logout", nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return err
		}
		if err := os.Remove(sessionFilePath(client.dataDir)); err != nil && !os.IsNotExist(err) {
			return err
		}
		printSuccess("Signed out")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("provider", "", "identity provider (e.g. Google, Apple)")
	loginCmd.Flags().String("email", "", "sign in with LuminaID credentials")
}

// --- dashboard ---

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Browse the client dashboard (requires login)",
}

var dashboardInquiriesCmd = &cobra.Command{
	Use:   "inquiries",
	Short: "List submitted inquiries",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.dashboard(cmd.Context(), "/inquiries")
		if err != nil {
			return err
		}
		var items []vault.Inquiry
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}
		printInquiries(os.Stdout, items)
		return nil
	},
}

func printInquiries(w io.Writer, items []vault.Inquiry) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No inquiries found.")
		return
	}
	for _, inq := range items {
		priority := "-"
		if inq.Intelligence != nil {
			priority = inq.Intelligence.Priority
		}
		fmt.Fprintf(w, "%s  %s  %-8s %-7s %s\n",
			colorize(colorCyan, shortID(inq.ID)),
			inq.CreatedAt.Local().Format("2006-01-02 15:04"),
			inq.SelectedPlan,
			priority,
			inq.Name,
		)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var dashboardVisionsCmd = &cobra.Command{
	Use:   "visions",
	Short: "List generated digital visions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printDashboard(cmd.Context(), "/visions")
	},
}

var dashboardAuditsCmd = &cobra.Command{
	Use:   "audits",
	Short: "List brand audits",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printDashboard(cmd.Context(), "/audits")
	},
}

var dashboardSessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the signed-in session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printDashboard(cmd.Context(), "/session")
	},
}

func printDashboard(ctx context.Context, path string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.dashboard(ctx, path)
	if err != nil {
		return err
	}
	var v any
	if err := decodeJSON(resp, &v); err != nil {
		return err
	}
	return printJSON(os.Stdout, v)
}

func init() {
	dashboardCmd.AddCommand(dashboardInquiriesCmd, dashboardVisionsCmd, dashboardAuditsCmd, dashboardSessionCmd)
}

// --- studio tools ---

var visionCmd = &cobra.Command{
	Use:   "vision <industry> <keyword>",
	Short: "Generate a digital vision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/visions", map[string]string{"industry": args[0], "keyword": args[1]})
		if err != nil {
			return err
		}
		var rec vault.VisionRecord
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}
		fmt.Println(colorize(colorBold, rec.Data.Vision))
		for _, f := range rec.Data.KeyFeatures {
			fmt.Printf("  • %s\n", f)
		}
		fmt.Printf("  Palette: %s\n", strings.Join(rec.Data.ColorPalette, " "))
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a brand audit",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		industry, _ := cmd.Flags().GetString("industry")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Scanning %s...", name)
		resp, err := client.post(cmd.Context(), "/scan", map[string]string{"businessName": name, "industry": industry})
		if err != nil {
			return err
		}
		var rec vault.AuditRecord
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}
		printStatus("Score", "%d/100", rec.Score)
		printStatus("Critique", "%s", rec.Critique)
		for _, r := range rec.Recommendations {
			fmt.Printf("  • %s\n", r)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().String("name", "", "business name")
	scanCmd.Flags().String("industry", "", "business industry")
	scanCmd.MarkFlagRequired("name")
	scanCmd.MarkFlagRequired("industry")
}

var thesisCmd = &cobra.Command{
	Use:   "thesis",
	Short: "Download the studio's brand thesis",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Establishing encrypted connection...")
		resp, err := client.post(cmd.Context(), "/thesis", nil)
		if err != nil {
			return err
		}
		var rec vault.ThesisRecord
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}
		if output == "" {
			fmt.Println(rec.Content)
			return nil
		}
		if err := os.WriteFile(output, []byte(rec.Content), 0o644); err != nil {
			return fmt.Errorf("writing thesis: %w", err)
		}
		printSuccess("Thesis saved to %s", output)
		return nil
	},
}

func init() {
	thesisCmd.Flags().String("output", "", "output file path (default: stdout)")
}

var insightCmd = &cobra.Command{
	Use:   "insight <service>",
	Short: "Strategic deep dive into a service",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		service := strings.Join(args, " ")
		resp, err := client.get(cmd.Context(), "/services/"+url.PathEscape(service)+"/insight")
		if err != nil {
			return err
		}
		var v any
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		return printJSON(os.Stdout, v)
	},
}

var phaseCmd = &cobra.Command{
	Use:   "phase <id|title>",
	Short: "Explain a phase of the delivery process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/process/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var v struct {
			Phase   string `json:"phase"`
			Details string `json:"details"`
		}
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}
		fmt.Println(colorize(colorBold, v.Phase))
		fmt.Println(v.Details)
		return nil
	},
}

// --- vault ---

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Export, clear or watch the studio vault",
}

var vaultExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the whole vault document",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := exportVault(cmd.Context(), client, format, w); err != nil {
			return err
		}
		if output != "" {
			printSuccess("Vault exported to %s", output)
		}
		return nil
	},
}

func exportVault(ctx context.Context, c *apiClient, format string, w io.Writer) error {
	resp, err := c.get(ctx, "/vault/export?format="+url.QueryEscape(format))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

var vaultClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL vault records. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/vault/")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return err
		}
		printSuccess("Vault cleared")
		return nil
	},
}

var vaultWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print vault changes as they happen",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		// Streams until interrupted.
		client.httpClient.Timeout = 0
		resp, err := client.get(cmd.Context(), "/vault/events")
		if err != nil {
			return err
		}
		err = readEvents(resp, func(event string, data []byte) error {
			var c vault.Change
			if err := json.Unmarshal(data, &c); err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", c.At.Local().Format(time.TimeOnly), colorize(colorCyan, c.Section))
			return nil
		})
		if cmd.Context().Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	vaultExportCmd.Flags().String("format", "json", "export format (json or yaml)")
	vaultExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	vaultClearCmd.Flags().Bool("confirm", false, "confirm vault deletion")
	vaultCmd.AddCommand(vaultExportCmd, vaultClearCmd, vaultWatchCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Printf("Stored in %s\n", config.Location())
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a stored value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd)
}
