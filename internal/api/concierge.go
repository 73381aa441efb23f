package api

import (
	"net/http"
	"strings"

	"github.com/kalambet/lumina/internal/audio"
	"github.com/kalambet/lumina/internal/concierge"
)

type chatRequest struct {
	Message string `json:"message"`
	Section string `json:"section"`
}

// handleChat streams the concierge reply as "fragment" events followed by a
// "done" event carrying the full text.
func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		if deps.Chat.Status() == concierge.StatusThinking {
			domainError(w, concierge.ErrBusy)
			return
		}
		section := req.Section
		if section == "" && deps.Shell != nil {
			section = deps.Shell.Section()
		}

		stream, ok := newEventStream(w)
		if !ok {
			return
		}
		reply, err := deps.Chat.Send(r.Context(), req.Message, section, func(frag string) {
			stream.send("fragment", map[string]string{"text": frag})
		})
		if err != nil {
			stream.fail(err)
			return
		}
		stream.send("done", map[string]string{"reply": reply})
	}
}

func handleChatHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   deps.Chat.Status(),
			"messages": deps.Chat.History(),
		})
	}
}

func handleChatClear(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Chat.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}

type speechResponse struct {
	Audio    string `json:"audio"`
	MimeType string `json:"mimeType"`
}

func handleSpeech(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}
		data, ok := deps.AI.Speech(r.Context(), req.Text)
		if !ok {
			httpError(w, http.StatusServiceUnavailable, "api_error", "speech synthesis unavailable")
			return
		}
		writeJSON(w, http.StatusOK, speechResponse{Audio: data, MimeType: audio.OutputMIME})
	}
}
