package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/lumina/internal/brief"
	"github.com/kalambet/lumina/internal/flow"
	"github.com/kalambet/lumina/internal/vault"
)

// ContactRequest is the inquiry form. Attachment is an optional base64 PDF
// (raw or data URL).
type ContactRequest struct {
	vault.ContactForm
	Attachment string `json:"attachment,omitempty"`
}

func handleContact(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ContactRequest
		if !decodeBody(w, r, maxContactBodySize, &req) {
			return
		}
		if req.SelectedPlan == "" && deps.Shell != nil {
			req.SelectedPlan = deps.Shell.Snapshot().SelectedPlan
		}
		attachment, err := brief.DecodeAttachment(req.Attachment)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		c := flow.NewContact(deps.AI, deps.Vault, deps.Briefs, deps.Timing)
		inq, err := c.Submit(r.Context(), flow.Submission{Form: req.ContactForm, Attachment: attachment})
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, inq)
	}
}

type visionRequest struct {
	Industry string `json:"industry"`
	Keyword  string `json:"keyword"`
}

func handleVision(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req visionRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		rec, err := flow.NewVision(deps.AI, deps.Vault).Generate(r.Context(), req.Industry, req.Keyword)
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

type scanRequest struct {
	BusinessName string `json:"businessName"`
	Industry     string `json:"industry"`
}

func handleScan(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scanRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		rec, err := flow.NewScanner(deps.AI, deps.Vault, deps.Timing).Scan(r.Context(), req.BusinessName, req.Industry)
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func handleThesis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := flow.NewThesis(deps.AI, deps.Vault, deps.Timing).Download(r.Context())
		if err != nil {
			domainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func handlePhaseDetails(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := flow.NewPhase(deps.AI)
		details, err := flow.OpenPhase(r.Context(), d, chi.URLParam(r, "phase"))
		if err != nil {
			if errors.Is(err, flow.ErrInvalidInput) {
				httpError(w, http.StatusNotFound, "not_found", "%v", err)
				return
			}
			domainError(w, err)
			return
		}
		phase, _ := d.Selected()
		writeJSON(w, http.StatusOK, map[string]string{"phase": phase, "details": details})
	}
}

func handleServiceInsight(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := flow.NewInsight(deps.AI)
		insight, err := flow.OpenInsight(r.Context(), d, chi.URLParam(r, "name"))
		if err != nil {
			if errors.Is(err, flow.ErrInvalidInput) {
				httpError(w, http.StatusNotFound, "not_found", "%v", err)
				return
			}
			domainError(w, err)
			return
		}
		service, _ := d.Selected()
		writeJSON(w, http.StatusOK, map[string]any{"service": service, "insight": insight})
	}
}
