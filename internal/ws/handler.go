package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wjkim9/fantasy11-draft-backend/internal/hub"
	"github.com/wjkim9/fantasy11-draft-backend/internal/session"
	"github.com/wjkim9/fantasy11-draft-backend/internal/types"
)

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		participantID := r.URL.Query().Get("participant")

		reply := make(chan *session.Session, 1)
		h.Inbox() <- hub.GetSession{Code: code, Reply: reply}
		sess := <-reply
		if sess == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Outbound, 16)
		clientID := uuid.NewString()

		if err := sess.Send(session.Join{ClientID: clientID, Outbox: out}); err != nil {
			return
		}
		defer func() { _ = sess.Send(session.Leave{ClientID: clientID}) }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ev := range out {
				payload, _ := json.Marshal(types.FromOutbound(ev))
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop. No read deadline: a drafter may legitimately sit
		// idle for a full turn clock between messages.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			switch cm.Type {
			case "PickPlayer":
				errReply := make(chan error, 1)
				req := session.PickRequest{
					ParticipantID: participantID,
					EntryID:       cm.PlayerID,
					Reply:         errReply,
				}
				if err := sess.Send(req); err != nil {
					writeRejected(r.Context(), conn, err)
					continue
				}
				// Rejections go back on this connection only; commits
				// arrive through the broadcast like everyone else's.
				if err := <-errReply; err != nil {
					writeRejected(r.Context(), conn, err)
				}

			case "StartDraft":
				errReply := make(chan error, 1)
				if err := sess.Send(session.Start{Reply: errReply}); err != nil {
					writeRefused(r.Context(), conn, err)
					continue
				}
				if err := <-errReply; err != nil {
					writeRefused(r.Context(), conn, err)
				}

			case "CancelSession":
				errReply := make(chan error, 1)
				if err := sess.Send(session.Cancel{Reply: errReply}); err != nil {
					writeRefused(r.Context(), conn, err)
					continue
				}
				if err := <-errReply; err != nil {
					writeRefused(r.Context(), conn, err)
				}

			default:
				writeError(r.Context(), conn, "unknown type")
			}
		}
	}
}

func writeRejected(ctx context.Context, conn *websocket.Conn, err error) {
	payload, _ := json.Marshal(types.ServerMessage{
		Type:   "PickRejected",
		Reason: types.ReasonCode(err),
	})
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

func writeRefused(ctx context.Context, conn *websocket.Conn, err error) {
	payload, _ := json.Marshal(types.ServerMessage{
		Type:   "Error",
		Reason: types.ReasonCode(err),
	})
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: msg})
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
