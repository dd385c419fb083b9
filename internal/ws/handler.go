package ws

import (
	"context"
	"encoding/json"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/inbox-service/internal/inbox"
	"github.com/fathima-sithara/inbox-service/internal/models"
)

type envelope struct {
	Type          string                       `json:"type"` // "inbox" or "error"
	Conversations []models.ConversationSummary `json:"conversations,omitempty"`
	Error         string                       `json:"error,omitempty"`
}

// Handler returns the fiber websocket handler for the live inbox: one
// inbox subscription per socket, summaries pushed on every update,
// everything torn down when the socket goes away.
func Handler(svc *inbox.Service, log *zap.SugaredLogger) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		userID, _ := conn.Locals("user_id").(string)
		if userID == "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":"unauthenticated"}`))
			_ = conn.Close()
			return
		}

		client := NewClient(conn)
		go client.WritePump()

		sub, err := svc.Subscribe(context.Background(), userID)
		if err != nil {
			log.Errorw("inbox subscribe failed", "user_id", userID, "err", err)
			client.Send(mustMarshal(envelope{Type: "error", Error: "subscribe failed"}))
			client.Close()
			_ = conn.Close()
			return
		}
		defer func() {
			sub.Dispose()
			client.Close()
		}()

		sub.OnUpdate(func(summaries []models.ConversationSummary) {
			client.Send(mustMarshal(envelope{Type: "inbox", Conversations: summaries}))
		})
		sub.OnError(func(err error) {
			log.Warnw("inbox feed error", "user_id", userID, "err", err)
			client.Send(mustMarshal(envelope{Type: "error", Error: err.Error()}))
			client.Close()
			// unblock the read loop so the handler tears down instead
			// of waiting for the peer to react to the close frame
			_ = conn.Close()
		})

		// reads only detect the peer going away; the inbox stream is
		// one-directional
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"error","error":"encode failed"}`)
	}
	return b
}
