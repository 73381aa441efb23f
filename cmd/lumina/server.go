package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/lumina/internal/api"
	"github.com/kalambet/lumina/internal/auth"
	"github.com/kalambet/lumina/internal/brief"
	"github.com/kalambet/lumina/internal/concierge"
	"github.com/kalambet/lumina/internal/config"
	"github.com/kalambet/lumina/internal/flow"
	"github.com/kalambet/lumina/internal/gateway"
	"github.com/kalambet/lumina/internal/gemini"
	"github.com/kalambet/lumina/internal/storage"
	"github.com/kalambet/lumina/internal/telemetry"
	"github.com/kalambet/lumina/internal/vault"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the lumina server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running lumina server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lumina system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "lumina.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// backend is the opened vault storage and the optional capabilities it
// offers beyond plain key-value access.
type backend struct {
	kv      storage.KV
	speech  gateway.SpeechCache
	pruner  storage.SpeechPruner
	watcher vault.Watcher
	close   func() error
}

func openBackend(cfg config.StorageConfig) (backend, error) {
	switch cfg.Backend {
	case "sqlite":
		store, err := storage.Open(cfg.DataDir)
		if err != nil {
			return backend{}, fmt.Errorf("opening storage: %w", err)
		}
		return backend{kv: store, speech: store, pruner: store, close: store.Close}, nil
	case "file":
		files, err := storage.OpenFiles(filepath.Join(cfg.DataDir, "vault"))
		if err != nil {
			return backend{}, fmt.Errorf("opening storage: %w", err)
		}
		return backend{kv: files, watcher: files, close: func() error { return nil }}, nil
	case "memory":
		return backend{kv: storage.NewMemory(), close: func() error { return nil }}, nil
	default:
		return backend{}, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func retryPolicy(cfg config.GatewayConfig) gateway.RetryPolicy {
	p := gateway.DefaultPolicy()
	p.MaxRetries = cfg.MaxRetries
	if cfg.BackoffMultiplier > 0 {
		p.Multiplier = cfg.BackoffMultiplier
	}
	if d, err := time.ParseDuration(cfg.InitialBackoff); err == nil && d > 0 {
		p.InitialBackoff = d
	} else if cfg.InitialBackoff != "" {
		slog.Warn("invalid initial backoff, using default", "value", cfg.InitialBackoff, "error", err)
	}
	return p
}

func sessionTTL(cfg config.AuthConfig) time.Duration {
	d, err := time.ParseDuration(cfg.SessionTTL)
	if err != nil || d <= 0 {
		slog.Warn("invalid session ttl, using default", "value", cfg.SessionTTL)
		return auth.DefaultTTL
	}
	return d
}

// liveDialer opens live connections through the Gemini client.
func liveDialer(client *gemini.Client) concierge.DialFunc {
	return func(ctx context.Context, cfg gemini.LiveConfig) (concierge.LiveConn, error) {
		sess, err := client.Live(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

func runServer(ctx context.Context) error {
	fmt.Fprintf(os.Stderr, "lumina version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	kc := config.NewKeychain()
	apiToken, err := config.GetAPIToken(kc)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	sessionSecret, err := config.GetSessionSecret(kc)
	if err != nil {
		return fmt.Errorf("initializing session secret: %w", err)
	}
	slog.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("lumina is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("lumina is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	// Tracing.
	telCfg, err := telemetry.LoadConfig()
	if err != nil {
		return err
	}
	tp, shutdownTracing, err := telemetry.Setup(ctx, telCfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("flushing traces", "error", err)
		}
	}()

	// Open storage.
	be, err := openBackend(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()
	slog.Info("storage ready", "backend", cfg.Storage.Backend, "dir", cfg.Storage.DataDir)

	v, err := vault.New(be.kv)
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}
	if be.watcher != nil {
		if err := v.Watch(ctx, be.watcher); err != nil {
			slog.Warn("vault changes from other processes will not be reported", "error", err)
		}
	}
	if be.pruner != nil {
		go storage.NewPruner(be.pruner, 0, 0).Run(ctx)
	}

	// Model gateway.
	client := gemini.NewClient(cfg.Gemini.APIKey,
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithLiveURL(cfg.Gemini.LiveURL),
	)
	gwOpts := []gateway.Option{gateway.WithTracerProvider(tp)}
	if be.speech != nil {
		gwOpts = append(gwOpts, gateway.WithSpeechCache(be.speech))
	}
	gw := gateway.New(client, gateway.Config{
		TextModel:   cfg.Gemini.TextModel,
		ProModel:    cfg.Gemini.ProModel,
		SpeechModel: cfg.Gemini.SpeechModel,
		Voice:       cfg.Gemini.Voice,
		Policy:      retryPolicy(cfg.Gateway),
	}, gwOpts...)

	// Flows.
	timing := flow.DefaultTiming()
	timing.Scale = cfg.Flow.DelayScale
	shell, err := flow.NewShell(v, timing)
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	signer, err := auth.NewSigner(sessionSecret, sessionTTL(cfg.Auth), nil)
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Deps{
		Vault:  v,
		AI:     gw,
		Shell:  shell,
		Chat:   concierge.NewChat(gw),
		Signer: signer,
		Briefs: brief.NewReader(),
		Timing: timing,
		Token:  apiToken,
		Live: api.LiveDeps{
			Dial:    liveDialer(client),
			Options: concierge.LiveOptions{Model: cfg.Gemini.LiveModel, Voice: cfg.Gemini.Voice},
		},
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{Vault: v, AI: gw, Timing: timing})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "lumina listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("lumina is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop lumina (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to lumina (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Text model", "%s", cfg.Gemini.TextModel)
	printStatus("Pro model", "%s", cfg.Gemini.ProModel)
	printStatus("Live model", "%s", cfg.Gemini.LiveModel)
	printStatus("Voice", "%s", cfg.Gemini.Voice)
	printStatus("Storage", "%s", cfg.Storage.Backend)

	// Show vault counts if server is running.
	apiToken, tokenErr := config.GetAPIToken(config.NewKeychain())
	if tokenErr == nil && running {
		req, err := http.NewRequest("GET", serverURL+"/vault/export", nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+apiToken)
			if vr, err := client.Do(req); err == nil {
				var doc vault.Document
				if vr.StatusCode == 200 && json.NewDecoder(vr.Body).Decode(&doc) == nil {
					printStatus("Inquiries", "%d", len(doc.Inquiries))
					printStatus("Visions", "%d", len(doc.Visions))
					printStatus("Audits", "%d", len(doc.Audits))
					printStatus("Last sync", "%s", doc.Metadata.LastSync.Local().Format(time.RFC1123))
				}
				vr.Body.Close()
			}
		}
	}

	if sess, err := readSessionToken(cfg.Storage.DataDir); err == nil && sess != "" {
		printStatus("Session", "signed in")
	} else {
		printStatus("Session", "signed out")
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
