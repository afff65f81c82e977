package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/healthagent/internal/auth"
	"github.com/ziadkadry99/healthagent/internal/session"
)

// wsQueue bounds the messages a client may send ahead of the current reply.
const wsQueue = 8

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Type    string `json:"type"` // "message"
	Content string `json:"content"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type    string         `json:"type"` // "chunk" or "error"
	Chunk   *session.Chunk `json:"chunk,omitempty"`
	Content string         `json:"content,omitempty"`
}

// handleWebSocket serves a chat connection. Messages are handled one at a
// time; each reply is streamed as a sequence of "chunk" messages.
func handleWebSocket(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())
		logger := svc.logger.With().Int64("user_id", userID).Logger()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade")
			return
		}
		send := func(resp wsResponse) error {
			if err := conn.WriteJSON(resp); err != nil {
				logger.Debug().Err(err).Msg("websocket write")
				return err
			}
			return nil
		}
		sendError := func(msg string) { _ = send(wsResponse{Type: "error", Content: msg}) }

		// The reader runs for the whole connection so a disconnect is noticed
		// while a reply streams; it cancels ctx and closes incoming on exit.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		incoming := make(chan []byte, wsQueue)
		go func() {
			defer close(incoming)
			defer cancel()
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						logger.Warn().Err(err).Msg("websocket read")
					}
					return
				}
				select {
				case incoming <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()
		defer func() {
			conn.Close()
			for range incoming {
			}
		}()

		for msg := range incoming {
			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				sendError("invalid message format")
				continue
			}
			if req.Type != "message" {
				sendError("unknown message type: " + req.Type)
				continue
			}

			ex, err := svc.RunChat(ctx, userID, req.Content)
			if err != nil {
				sendError(chatErrorMessage(err))
				continue
			}
			_, err = svc.Relay(ctx, ex, func(c session.Chunk) error {
				return send(wsResponse{Type: "chunk", Chunk: &c})
			})
			if errors.Is(err, ErrCallerGone) || ctx.Err() != nil {
				return
			}
			if reportable(err) {
				sendError(UserMessage(err))
			}
		}
	}
}
