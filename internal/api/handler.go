package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/lumina/internal/auth"
	"github.com/kalambet/lumina/internal/catalog"
	"github.com/kalambet/lumina/internal/concierge"
	"github.com/kalambet/lumina/internal/flow"
	"github.com/kalambet/lumina/internal/gemini"
	"github.com/kalambet/lumina/internal/vault"
)

// AI is the generation surface used by the handlers. Implemented by
// *gateway.Gateway.
type AI interface {
	flow.InquiryAnalyzer
	flow.IdentityVerifier
	flow.Auditor
	flow.Visionary
	flow.PhaseAdvisor
	flow.InsightAdvisor
	flow.Thesist
	AskConcierge(ctx context.Context, message, section string, history []gemini.Content) (*gemini.Stream, error)
	Speech(ctx context.Context, text string) (string, bool)
}

// LiveDeps configures the live voice bridge. A nil Dial disables it.
type LiveDeps struct {
	Dial    concierge.DialFunc
	Options concierge.LiveOptions
}

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Vault  *vault.Vault
	AI     AI
	Shell  *flow.Shell
	Chat   *concierge.Chat
	Signer *auth.Signer
	Briefs flow.PlanReader // optional; nil rejects attachments
	Timing flow.Timing
	Token  string
	Live   LiveDeps
}

// NewHandler returns the studio's HTTP API: public pages and forms, the
// session-guarded dashboard, and the token-guarded vault management routes.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Get("/plans", handlePlans)
	r.Get("/services", handleServices)
	r.Get("/process", handleProcess)
	r.Get("/process/{phase}", handlePhaseDetails(deps))
	r.Get("/services/{name}/insight", handleServiceInsight(deps))

	r.Post("/contact", handleContact(deps))
	r.Post("/visions", handleVision(deps))
	r.Post("/scan", handleScan(deps))
	r.Post("/thesis", handleThesis(deps))

	r.Post("/auth/login", handleLogin(deps))
	r.Post("/auth/logout", handleLogout(deps))

	r.Get("/view", handleView(deps))
	r.Post("/view/navigate", handleNavigate(deps))
	r.Post("/view/section", handleSection(deps))
	r.Post("/view/start-project", handleStartProject(deps))
	r.Post("/view/tab", handleTab(deps))
	r.Post("/view/plan", handleSelectPlan(deps))

	r.Post("/concierge/chat", handleChat(deps))
	r.Get("/concierge/history", handleChatHistory(deps))
	r.Delete("/concierge/history", handleChatClear(deps))
	r.Post("/concierge/speech", handleSpeech(deps))
	r.Handle("/concierge/live", handleLive(deps))

	r.Route("/dashboard", func(r chi.Router) {
		r.Use(SessionAuth(deps.Signer, deps.Vault))
		r.Get("/inquiries", handleDashboardInquiries(deps))
		r.Get("/visions", handleDashboardVisions(deps))
		r.Get("/audits", handleDashboardAudits(deps))
		r.Get("/session", handleDashboardSession(deps))
	})

	r.Mount("/vault", NewVaultHandler(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handlePlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Plans())
}

func handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Services())
}

func handleProcess(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Phases())
}
