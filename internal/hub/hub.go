package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wjkim9/fantasy11-draft-backend/internal/engine"
	"github.com/wjkim9/fantasy11-draft-backend/internal/session"
)

type HubMsg interface{ isHubMsg() }

// SessionConfig is everything session setup hands the coordinator: the
// rules, the fixed roster, and the catalog snapshot to draw from.
type SessionConfig struct {
	Rules        engine.Rules
	Participants []engine.Participant
	Catalog      []engine.Entry
}

type CreateReply struct {
	Session *session.Session
	Err     error
}

type CreateSession struct {
	Code   string
	Config SessionConfig
	Reply  chan CreateReply
}

type GetSession struct {
	Code  string
	Reply chan *session.Session
}

type RemoveSession struct {
	Code string
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

// Ended sessions linger this long so late snapshot and claim queries
// still resolve, then get removed from the registry.
const defaultRetention = 15 * time.Minute

type Hub struct {
	inbox     chan HubMsg
	sessions  map[string]*session.Session
	rec       session.Recorder
	retention time.Duration
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewHub(parent context.Context, rec session.Recorder, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:     make(chan HubMsg, 64),
		sessions:  make(map[string]*session.Session),
		rec:       rec,
		retention: defaultRetention,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				if existing := h.sessions[msg.Code]; existing != nil {
					msg.Reply <- CreateReply{Session: existing}
					break
				}
				// A bad roster or catalog refuses to become a session.
				initial, err := engine.NewState(msg.Config.Rules, msg.Config.Participants, msg.Config.Catalog)
				if err != nil {
					msg.Reply <- CreateReply{Err: err}
					break
				}
				sess := session.New(h.ctx, msg.Code, initial, h.rec, h.log)
				h.sessions[msg.Code] = sess
				go h.watch(msg.Code, sess)
				h.log.Info("session created",
					zap.String("session", msg.Code),
					zap.Int("participants", len(msg.Config.Participants)),
					zap.Int("squad_size", msg.Config.Rules.SquadSize))
				msg.Reply <- CreateReply{Session: sess}

			case GetSession:
				msg.Reply <- h.sessions[msg.Code] // May be nil

			case RemoveSession:
				if sess := h.sessions[msg.Code]; sess != nil {
					_ = sess.Send(session.Shutdown{})
					delete(h.sessions, msg.Code)
					h.log.Info("session removed", zap.String("session", msg.Code))
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

// watch rides the session's own broadcast until the draft ends, then
// schedules removal after the retention window. The watcher is an
// ordinary client; a closed outbox means the session is already gone.
func (h *Hub) watch(code string, sess *session.Session) {
	out := make(chan session.Outbound, 16)
	if err := sess.Send(session.Join{ClientID: "hub:" + code, Outbox: out}); err != nil {
		return
	}
	for ev := range out {
		switch ev.Type {
		case session.OutDraftCompleted, session.OutSessionCancelled:
			_ = sess.Send(session.Leave{ClientID: "hub:" + code})
			time.AfterFunc(h.retention, func() {
				select {
				case h.inbox <- RemoveSession{Code: code}:
				case <-h.ctx.Done():
				}
			})
			return
		}
	}
}

func (h *Hub) shutdown() {
	for _, sess := range h.sessions {
		_ = sess.Send(session.Shutdown{})
	}
	clear(h.sessions)
	h.cancel()
}
