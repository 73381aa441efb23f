package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/lumina/internal/flow"
	"github.com/kalambet/lumina/internal/vault"
)

type loginRequest struct {
	Provider string `json:"provider"`
	Email    string `json:"email"`
}

// loginEvent reports one handshake step.
type loginEvent struct {
	State flow.LoginState `json:"state"`
	Log   []string        `json:"log"`
}

// loginComplete is the final event of a successful handshake.
type loginComplete struct {
	Welcome   string            `json:"welcomeMessage"`
	Session   vault.UserSession `json:"userProfile"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// handleLogin streams the handshake as server-sent events. Providers other
// than the built-in one take the social path; an email takes the credential
// path.
func handleLogin(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		provider := strings.TrimSpace(req.Provider)
		email := strings.TrimSpace(req.Email)
		if provider == "" && email == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "provider or email is required")
			return
		}

		onSuccess := func(_ context.Context, s vault.UserSession) error { return deps.Vault.SetSession(s) }
		if deps.Shell != nil {
			onSuccess = deps.Shell.LoginSuccess
		}
		login := flow.NewLogin(deps.AI, deps.Timing, onSuccess)

		stream, ok := newEventStream(w)
		if !ok {
			return
		}
		login.Observe(func(_, to flow.LoginState) {
			stream.send("state", loginEvent{State: to, Log: login.Log()})
		})

		var res flow.LoginResult
		var err error
		if email != "" && (provider == "" || strings.EqualFold(provider, flow.CredentialProvider)) {
			res, err = login.Credentials(r.Context(), email)
		} else {
			res, err = login.Social(r.Context(), provider)
		}
		if err != nil {
			stream.fail(err)
			return
		}

		token, exp, err := deps.Signer.Issue(res.Session)
		if err != nil {
			stream.fail(err)
			return
		}
		stream.send("session", loginComplete{
			Welcome:   res.Welcome,
			Session:   res.Session,
			Token:     token,
			ExpiresAt: exp,
		})
	}
}

func handleLogout(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logout := deps.Vault.ClearSession
		if deps.Shell != nil {
			logout = deps.Shell.Logout
		}
		if err := logout(); err != nil {
			domainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleView(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Shell.Snapshot())
	}
}

func handleNavigate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			View string `json:"view"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		view, err := flow.ParseView(req.View)
		if err != nil {
			domainError(w, err)
			return
		}
		if _, err := deps.Shell.Navigate(view); err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, deps.Shell.Snapshot())
	}
}

func handleSection(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Section string `json:"section"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		deps.Shell.SetSection(req.Section)
		writeJSON(w, http.StatusOK, deps.Shell.Snapshot())
	}
}

func handleStartProject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Source string `json:"source"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if err := deps.Shell.StartProject(r.Context(), req.Source); err != nil && !errors.Is(err, flow.ErrAbandoned) {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, deps.Shell.Snapshot())
	}
}

func handleTab(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tab string `json:"tab"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if err := deps.Shell.SetTab(flow.Tab(strings.ToLower(strings.TrimSpace(req.Tab)))); err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, deps.Shell.Snapshot())
	}
}

func handleSelectPlan(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Plan string `json:"plan"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if _, err := deps.Shell.SelectPlan(req.Plan); err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, deps.Shell.Snapshot())
	}
}
