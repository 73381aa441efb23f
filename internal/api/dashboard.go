package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

func handleDashboardInquiries(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Vault.GetInquiries()
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleDashboardVisions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Vault.GetVisions()
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleDashboardAudits(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Vault.GetAudits()
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleDashboardSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFrom(r.Context())
		session, err := deps.Vault.GetSession()
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"claims":  claims,
			"session": session,
		})
	}
}

// NewVaultHandler returns the token-guarded vault management routes.
func NewVaultHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Get("/export", handleVaultExport(deps))
	r.Delete("/", handleVaultClear(deps))
	r.Get("/events", handleVaultEvents(deps))

	return r
}

func handleVaultExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Vault.Snapshot()
		if err != nil {
			domainError(w, err)
			return
		}
		switch format := strings.ToLower(r.URL.Query().Get("format")); format {
		case "", "json":
			writeJSON(w, http.StatusOK, doc)
		case "yaml", "yml":
			b, err := yaml.Marshal(doc)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "encoding yaml: %v", err)
				return
			}
			w.Header().Set("Content-Type", "application/yaml")
			w.Write(b)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unsupported format %q (use json or yaml)", format)
		}
	}
}

func handleVaultClear(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Vault.ClearAll(); err != nil {
			domainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleVaultEvents streams vault changes until the client disconnects.
func handleVaultEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		changes, cancel := deps.Vault.Subscribe()
		defer cancel()

		stream, ok := newEventStream(w)
		if !ok {
			return
		}
		for {
			select {
			case <-r.Context().Done():
				return
			case c, open := <-changes:
				if !open {
					return
				}
				if err := stream.send("change", c); err != nil {
					return
				}
			}
		}
	}
}
