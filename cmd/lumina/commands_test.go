package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/lumina/internal/vault"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

// newTestServer answers "METHOD /path" keys with the given bodies. Bodies
// starting with "event:" are served as an event stream.
func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			if strings.HasPrefix(resp, "event:") {
				w.Header().Set("Content-Type", "text/event-stream")
			} else {
				w.Header().Set("Content-Type", "application/json")
			}
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		session:    "session-jwt",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestContactCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /contact": `{"id":"inq-123","name":"Ada","selectedPlan":"Premium","intelligence":{"priority":"High","industryAnalysis":"Strong","suggestedRoadmap":["Discovery"],"marketSources":[]}}`,
	})

	form := vault.ContactForm{Name: "Ada", Age: "36", Email: "ada@example.com", Phone: "1", BusinessPlans: "Hotels", WebsiteIdea: "Booking", SelectedPlan: "premium"}
	inq, err := submitContact(ctx, ts.client(), form, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inq.ID != "inq-123" || inq.Intelligence == nil || inq.Intelligence.Priority != "High" {
		t.Errorf("inquiry = %+v", inq)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["name"] != "Ada" || body["selectedPlan"] != "premium" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["attachment"]; ok {
		t.Error("attachment should be omitted when no file is given")
	}
}

func TestContactCommand_Attachment(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /contact": `{"id":"inq-1"}`,
	})
	path := filepath.Join(t.TempDir(), "plan.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := submitContact(ctx, ts.client(), vault.ContactForm{Name: "Ada"}, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]any
	json.Unmarshal([]byte(ts.requests[0].Body), &body)
	if body["attachment"] != "JVBERi0xLjQ=" {
		t.Errorf("attachment = %v, want base64 of the file", body["attachment"])
	}
}

func TestContactCommand_MissingFlags(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"contact", "--name", "Ada"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing flags")
	}
	if !strings.Contains(err.Error(), "--email") || !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to name --email as required", err.Error())
	}
}

func TestScanCommand_RequiredFlags(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"scan", "--name", "Aurora"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing industry")
	}
	if !strings.Contains(err.Error(), "industry") {
		t.Errorf("error = %q, want it to mention industry", err.Error())
	}
}

func TestLoginStream(t *testing.T) {
	stream := "event: state\ndata: {\"state\":\"external_handshake\",\"log\":[\"> Initiating OAuth channel via Google...\"]}\n\n" +
		"event: state\ndata: {\"state\":\"callback\",\"log\":[\"> Initiating OAuth channel via Google...\",\"> Receiving authentication callback from Google servers...\"]}\n\n" +
		"event: session\ndata: {\"welcomeMessage\":\"Welcome back\",\"userProfile\":{\"name\":\"Ada\",\"role\":\"Founder\",\"clearance\":\"Tier 1\",\"token\":\"LUM-1\"},\"token\":\"jwt-abc\",\"expiresAt\":\"2026-01-01T00:00:00Z\"}\n\n"
	ts := newTestServer(t, map[string]string{"POST /auth/login": stream})

	done, err := runLogin(ctx, ts.client(), "Google", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Token != "jwt-abc" || done.Welcome != "Welcome back" || done.Session.Name != "Ada" {
		t.Errorf("session = %+v", done)
	}

	var body map[string]string
	json.Unmarshal([]byte(ts.requests[0].Body), &body)
	if body["provider"] != "Google" {
		t.Errorf("provider = %q", body["provider"])
	}
}

func TestLoginStream_Error(t *testing.T) {
	stream := "event: state\ndata: {\"state\":\"handshake\",\"log\":[]}\n\n" +
		"event: error\ndata: {\"error\":{\"message\":\"login handshake: identity rejected\",\"type\":\"server_error\"}}\n\n"
	ts := newTestServer(t, map[string]string{"POST /auth/login": stream})

	_, err := runLogin(ctx, ts.client(), "", "ada@example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "identity rejected") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestLoginStream_NoSession(t *testing.T) {
	ts := newTestServer(t, map[string]string{"POST /auth/login": "event: state\ndata: {\"state\":\"handshake\",\"log\":[]}\n\n"})

	if _, err := runLogin(ctx, ts.client(), "Google", ""); err == nil {
		t.Fatal("expected error when the stream ends without a session")
	}
}

func TestSessionToken_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	if err := writeSessionToken(dir, "jwt-abc"); err != nil {
		t.Fatalf("writeSessionToken: %v", err)
	}
	info, err := os.Stat(sessionFilePath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	got, err := readSessionToken(dir)
	if err != nil || got != "jwt-abc" {
		t.Errorf("readSessionToken = %q, %v", got, err)
	}
}

func TestDashboard_UsesSessionToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /dashboard/inquiries": `[]`,
	})

	resp, err := ts.client().dashboard(ctx, "/inquiries")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if auth := ts.requests[0].Auth; auth != "Bearer session-jwt" {
		t.Errorf("auth = %q, want session token", auth)
	}

	c := ts.client()
	c.session = ""
	if _, err := c.dashboard(ctx, "/inquiries"); err == nil || !strings.Contains(err.Error(), "lumina login") {
		t.Errorf("err = %v, want hint to log in", err)
	}
}

func TestPrintInquiries(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	var buf bytes.Buffer
	printInquiries(&buf, nil)
	if !strings.Contains(buf.String(), "No inquiries") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	printInquiries(&buf, []vault.Inquiry{{
		ID:           "0123456789abcdef",
		ContactForm:  vault.ContactForm{Name: "Ada", SelectedPlan: "Premium"},
		Intelligence: &vault.LeadIntelligence{Priority: "High"},
	}})
	out := buf.String()
	for _, want := range []string{"01234567", "Premium", "High", "Ada"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "89abcdef") {
		t.Errorf("id should be shortened: %q", out)
	}
}

func TestExportVault(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /vault/export": `{"inquiries":[],"visions":[]}`,
	})

	var buf bytes.Buffer
	if err := exportVault(ctx, ts.client(), "yaml", &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != `{"inquiries":[],"visions":[]}` {
		t.Errorf("output = %q", buf.String())
	}
	r := ts.requests[0]
	if r.Path != "/vault/export?format=yaml" {
		t.Errorf("path = %q", r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
}

func TestStreamChat(t *testing.T) {
	stream := "event: fragment\ndata: {\"text\":\"Hello \"}\n\n" +
		"event: fragment\ndata: {\"text\":\"visionary.\"}\n\n" +
		"event: done\ndata: {\"reply\":\"Hello visionary.\"}\n\n"
	ts := newTestServer(t, map[string]string{"POST /concierge/chat": stream})

	var out bytes.Buffer
	reply, err := streamChat(ctx, ts.client(), "hi", "Services", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Hello visionary." || out.String() != "Hello visionary." {
		t.Errorf("reply = %q, streamed = %q", reply, out.String())
	}
}

func TestDecodeJSON_ErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	resp, err := ts.client().get(ctx, "/missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var v any
	err = decodeJSON(resp, &v)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404: not found") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestLiveURL(t *testing.T) {
	tests := []struct {
		base, section, want string
	}{
		{"http://127.0.0.1:4100", "", "ws://127.0.0.1:4100/concierge/live"},
		{"http://127.0.0.1:4100", "Why Us", "ws://127.0.0.1:4100/concierge/live?section=Why+Us"},
		{"https://studio.example", "Home", "wss://studio.example/concierge/live?section=Home"},
	}
	for _, tt := range tests {
		if got := liveURL(tt.base, tt.section); got != tt.want {
			t.Errorf("liveURL(%q, %q) = %q, want %q", tt.base, tt.section, got, tt.want)
		}
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
