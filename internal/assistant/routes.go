package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/healthagent/internal/auth"
	"github.com/ziadkadry99/healthagent/internal/conversation"
	"github.com/ziadkadry99/healthagent/internal/health"
	"github.com/ziadkadry99/healthagent/internal/session"
)

// RegisterRoutes mounts the assistant, recommendation and websocket endpoints.
// Every route requires an X-User-ID header (or user_id query parameter).
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/api/health/assistant", func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/chat", handleChat(svc))
		r.Get("/messages", handleMessages(svc))
	})
	r.Route("/api/health/recommendations", func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/", handleCreateRecommendation(svc))
		r.Get("/latest", handleLatestRecommendation(svc))
	})
	r.With(auth.RequireUser).Get("/ws/assistant", handleWebSocket(svc))
}

// chatPayload is the body of a chat request.
type chatPayload struct {
	Content string `json:"content"`
}

func handleChat(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())

		var body chatPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		ex, err := svc.RunChat(r.Context(), userID, body.Content)
		if err != nil {
			writeChatError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		sse := &sseWriter{w: w, flusher: flusher}
		_, err = svc.Relay(r.Context(), ex, sse.chunk)
		if reportable(err) {
			sse.event("error", map[string]string{"error": UserMessage(err)})
		}
	}
}

// reportable reports whether a Relay error should be sent to a caller that
// already received the final chunk.
func reportable(err error) bool {
	return err != nil && !errors.Is(err, ErrCallerGone) && !errors.Is(err, context.Canceled)
}

// sseWriter writes server-sent events and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseWriter) chunk(c session.Chunk) error {
	return s.event("", c)
}

func (s *sseWriter) event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if name != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func handleMessages(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 200 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
				return
			}
			limit = n
		}

		msgs, err := svc.History(r.Context(), userID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleCreateRecommendation(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())

		rec, err := svc.Suggest(r.Context(), userID)
		switch {
		case errors.Is(err, health.ErrNoMetric):
			writeError(w, http.StatusNotFound, health.ErrNoMetric.Error())
		case errors.Is(err, ErrSuggestionUnavailable):
			writeError(w, http.StatusServiceUnavailable, ErrSuggestionUnavailable.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, rec)
		}
	}
}

func handleLatestRecommendation(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())

		rec, err := svc.LatestRecommendation(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "尚无健康建议记录。")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// writeChatError maps RunChat failures: input errors are 400, the rest 500.
func writeChatError(w http.ResponseWriter, err error) {
	if isInputError(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func isInputError(err error) bool {
	return errors.Is(err, conversation.ErrEmptyUtterance) || errors.Is(err, ErrUtteranceTooLong)
}

// chatErrorMessage is the websocket rendering of a RunChat failure.
func chatErrorMessage(err error) string {
	if isInputError(err) {
		return err.Error()
	}
	return session.DefaultFailureMessage
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
