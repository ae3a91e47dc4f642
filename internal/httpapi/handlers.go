package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wjkim9/fantasy11-draft-backend/internal/engine"
	"github.com/wjkim9/fantasy11-draft-backend/internal/hub"
	"github.com/wjkim9/fantasy11-draft-backend/internal/session"
	"github.com/wjkim9/fantasy11-draft-backend/internal/types"
)

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type CreateSessionRequest struct {
	Rules        engine.Rules         `json:"rules"`
	Participants []engine.Participant `json:"participants"`
	Catalog      []engine.Entry       `json:"catalog"`
}

func CreateSession(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		var code string
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			reply := make(chan *session.Session, 1)
			h.Inbox() <- hub.GetSession{Code: c, Reply: reply}
			if <-reply == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("code", c))
		}

		reply := make(chan hub.CreateReply, 1)
		h.Inbox() <- hub.CreateSession{
			Code: code,
			Config: hub.SessionConfig{
				Rules:        req.Rules,
				Participants: req.Participants,
				Catalog:      req.Catalog,
			},
			Reply: reply,
		}
		created := <-reply
		if created.Err != nil {
			// Configuration errors refuse the session outright.
			http.Error(w, created.Err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func StartSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := lookup(h, w, r)
		if !ok {
			return
		}
		errReply := make(chan error, 1)
		if err := sess.Send(session.Start{Reply: errReply}); err != nil {
			writeReason(w, err)
			return
		}
		if err := <-errReply; err != nil {
			writeReason(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func CancelSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := lookup(h, w, r)
		if !ok {
			return
		}
		errReply := make(chan error, 1)
		if err := sess.Send(session.Cancel{Reply: errReply}); err != nil {
			writeReason(w, err)
			return
		}
		if err := <-errReply; err != nil {
			writeReason(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetSnapshot serves the current turn state. Read-only: the reply
// travels through the session loop, nothing is mutated.
func GetSnapshot(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := lookup(h, w, r)
		if !ok {
			return
		}
		reply := make(chan session.View, 1)
		if err := sess.Send(session.GetState{Reply: reply}); err != nil {
			writeReason(w, err)
			return
		}
		snap := types.SnapshotFromView(<-reply)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}
}

func GetClaims(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := lookup(h, w, r)
		if !ok {
			return
		}
		reply := make(chan []engine.Claim, 1)
		if err := sess.Send(session.GetClaims{Reply: reply}); err != nil {
			writeReason(w, err)
			return
		}
		claims := <-reply
		if claims == nil {
			claims = []engine.Claim{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(claims)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func lookup(h *hub.Hub, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	code := chi.URLParam(r, "code")
	reply := make(chan *session.Session, 1)
	h.Inbox() <- hub.GetSession{Code: code, Reply: reply}
	sess := <-reply
	if sess == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func writeReason(w http.ResponseWriter, err error) {
	status := http.StatusConflict
	if errors.Is(err, engine.ErrSessionCancelled) {
		status = http.StatusGone
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Reason string `json:"reason"`
	}{Reason: types.ReasonCode(err)})
}
