package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/lumina/internal/auth"
	"github.com/kalambet/lumina/internal/concierge"
	"github.com/kalambet/lumina/internal/flow"
	"github.com/kalambet/lumina/internal/gateway"
	"github.com/kalambet/lumina/internal/gemini"
	"github.com/kalambet/lumina/internal/storage"
	"github.com/kalambet/lumina/internal/vault"
)

const testToken = "test-token"

// mockAI answers every generation call with canned content.
type mockAI struct {
	speech   string
	replies  []string
	askErr   error
	sections []string
}

func (m *mockAI) ProcessInquiry(_ context.Context, form vault.ContactForm) vault.LeadIntelligence {
	return vault.LeadIntelligence{
		Priority:         "High",
		IndustryAnalysis: "Analysis for " + form.Name,
		SuggestedRoadmap: []string{"Discovery"},
		MarketSources:    []vault.MarketSource{},
	}
}

func (m *mockAI) VerifyIdentity(_ context.Context, provider, email string) gateway.Verification {
	return gateway.Verification{
		WelcomeMessage: "Welcome via " + provider,
		Session: vault.UserSession{
			Name:      "Ada",
			Role:      "Founder",
			Clearance: "Tier 1",
			Token:     "LUM-ABCD-1234",
			LastLogin: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func (m *mockAI) BrandAudit(_ context.Context, name, industry string) gateway.Audit {
	return gateway.Audit{Score: 81, Critique: name + " in " + industry, Recommendations: []string{"a", "b", "c"}}
}

func (m *mockAI) DigitalVision(_ context.Context, industry, keyword string) vault.VisionData {
	return vault.VisionData{Vision: industry + "/" + keyword, KeyFeatures: []string{"x"}, ColorPalette: []string{"#111111"}}
}

func (m *mockAI) PhaseDetails(_ context.Context, phase string) string {
	return "details for " + phase
}

func (m *mockAI) ServiceInsight(_ context.Context, service string) gateway.ServiceInsight {
	return gateway.ServiceInsight{StrategicAdvice: service, TechnicalComplexity: "Medium"}
}

func (m *mockAI) BrandThesis(context.Context) string {
	return "THE THESIS"
}

func (m *mockAI) AskConcierge(_ context.Context, message, section string, _ []gemini.Content) (*gemini.Stream, error) {
	if m.askErr != nil {
		return nil, m.askErr
	}
	m.sections = append(m.sections, section)
	var sb strings.Builder
	for _, r := range m.replies {
		chunk, _ := json.Marshal(gemini.Response{Candidates: []gemini.Candidate{{Content: gemini.ModelText(r)}}})
		sb.WriteString("data: " + string(chunk) + "\n\n")
	}
	return gemini.NewStream(io.NopCloser(strings.NewReader(sb.String()))), nil
}

func (m *mockAI) Speech(_ context.Context, text string) (string, bool) {
	if m.speech == "" {
		return "", false
	}
	return m.speech, true
}

func newTestDeps(t *testing.T) (Deps, *mockAI) {
	t.Helper()
	v, err := vault.New(storage.NewMemory())
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	timing := flow.Timing{Scale: 0}
	shell, err := flow.NewShell(v, timing)
	if err != nil {
		t.Fatalf("NewShell: %v", err)
	}
	signer, err := auth.NewSigner("session-secret", time.Hour, nil)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	ai := &mockAI{replies: []string{"Hello ", "visionary."}, speech: "AAAA"}
	return Deps{
		Vault:  v,
		AI:     ai,
		Shell:  shell,
		Chat:   concierge.NewChat(ai),
		Signer: signer,
		Timing: timing,
		Token:  testToken,
	}, ai
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeJSON(t, rr, &body)
	return body.Error.Type
}

type sseEvent struct {
	Name string
	Data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if cur.Name != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		}
	}
	return events
}
