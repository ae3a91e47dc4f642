package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wjkim9/fantasy11-draft-backend/internal/engine"
)

type Msg interface{ isSessionMsg() }

type Join struct {
	ClientID string
	Outbox   chan Outbound // where this client wants to receive events
}

func (Join) isSessionMsg() {}

type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

type Start struct {
	Reply chan error
}

func (Start) isSessionMsg() {}

// PickRequest carries one participant's attempt to claim an entry. The
// outcome goes back on Reply only; rejections are never broadcast.
type PickRequest struct {
	ParticipantID string
	EntryID       int
	Reply         chan error
}

func (PickRequest) isSessionMsg() {}

type Cancel struct {
	Reply chan error
}

func (Cancel) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type GetClaims struct {
	Reply chan []engine.Claim
}

func (GetClaims) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type OutboundType string

const (
	OutSnapshot         OutboundType = "StateSnapshot"
	OutDraftStarted     OutboundType = "DraftStarted"
	OutTurnChanged      OutboundType = "TurnChanged"
	OutPickCommitted    OutboundType = "PickCommitted"
	OutDraftCompleted   OutboundType = "DraftCompleted"
	OutSessionCancelled OutboundType = "SessionCancelled"
)

type Outbound struct {
	Type     OutboundType
	Version  int
	Seat     int
	Round    int
	Deadline time.Time
	Claim    *engine.Claim
	Snapshot *View
}

// View is the queryable turn-state snapshot. Maps and slices are
// copies; readers never touch the loop's state.
type View struct {
	Version      int
	NumClients   int
	Status       engine.Status
	Round        int
	SeatOnClock  int
	OnClockID    string
	Deadline     time.Time
	TotalClaims  int
	Participants []engine.Participant
	Counts       map[string]map[engine.Position]int
}

// Recorder persists committed claims and status changes. Nil is a
// valid recorder; the session is fully functional in memory alone.
type Recorder interface {
	RecordClaim(ctx context.Context, code string, c engine.Claim) error
	RecordStatus(ctx context.Context, code string, status engine.Status) error
}

type recordOp struct {
	claim  *engine.Claim
	status engine.Status
}

// Session owns one draft's turn state. Every mutation funnels through
// loop, one message at a time, so turn and availability checks always
// see a single consistent snapshot.
type Session struct {
	code    string
	mu      sync.Mutex // guards closed; Send vs shutdown
	closed  bool
	inbox   chan Msg
	timerCh chan uint64
	state   engine.State
	version int
	clients map[string]chan Outbound
	timer   deadlineTimer
	rec     Recorder
	recCh   chan recordOp
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, code string, initial engine.State, rec Recorder, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		code:    code,
		inbox:   make(chan Msg, 64),
		timerCh: make(chan uint64, 4),
		state:   initial,
		clients: make(map[string]chan Outbound),
		rec:     rec,
		log:     log.With(zap.String("session", code)),
		ctx:     ctx,
		cancel:  cancel,
	}
	if rec != nil {
		s.recCh = make(chan recordOp, 256)
		go s.recordLoop()
	}
	go s.loop()
	return s
}

func (s *Session) Code() string { return s.code }

// Send queues a message for the loop. Once the session is gone the
// caller is told so instead of blocking forever. The closed flag is
// checked under the same lock shutdown sets it under, so no message
// can slip into the inbox after the final drain.
func (s *Session) Send(m Msg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return engine.ErrSessionCancelled
	}
	select {
	case s.inbox <- m:
		return nil
	case <-s.ctx.Done():
		return engine.ErrSessionCancelled
	}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case gen := <-s.timerCh:
			s.handleExpired(gen)

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.clients[msg.ClientID] = msg.Outbox
				view := s.view()
				msg.Outbox <- Outbound{Type: OutSnapshot, Version: s.version, Snapshot: &view}

			case Leave:
				delete(s.clients, msg.ClientID)

			case Start:
				msg.Reply <- s.apply(engine.Command{Type: engine.CmdStartDraft})

			case PickRequest:
				msg.Reply <- s.apply(engine.Command{
					Type:          engine.CmdLockPick,
					ParticipantID: msg.ParticipantID,
					EntryID:       msg.EntryID,
				})

			case Cancel:
				msg.Reply <- s.apply(engine.Command{Type: engine.CmdCancel})

			case GetState:
				msg.Reply <- s.view()

			case GetClaims:
				claims := make([]engine.Claim, len(s.state.Claims))
				copy(claims, s.state.Claims)
				msg.Reply <- claims

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

// handleExpired turns a live timer fire into the deterministic
// auto-pick for the seat on the clock. Stale fires are artifacts of
// asynchronous delivery, not bugs: drop them with a debug line.
func (s *Session) handleExpired(gen uint64) {
	if !s.timer.accept(gen) {
		s.log.Debug("ignoring stale timer fire", zap.Uint64("gen", gen))
		return
	}
	if err := s.apply(engine.Command{Type: engine.CmdTimeoutPick}); err != nil {
		// Nothing left this participant may take: the squad cannot be
		// filled, which only a broken catalog/caps combination allows.
		s.log.Error("auto-pick failed, cancelling session", zap.Error(err))
		_ = s.apply(engine.Command{Type: engine.CmdCancel})
	}
}

// apply runs one command through the engine and, on success, performs
// the full post-commit sequence: timer swap, persistence, invariant
// check, broadcast. Either all of it happens or none.
func (s *Session) apply(cmd engine.Command) error {
	events, newState, err := engine.Apply(s.state, cmd)
	if err != nil {
		return err
	}
	s.state = newState
	s.version++

	// The old countdown dies before any other message is dequeued so a
	// fire for this turn can never land after the commit.
	s.timer.cancel()

	var deadline time.Time
	if s.state.Status == engine.StatusInProgress {
		dur := time.Duration(s.state.Rules.TurnTimerSec) * time.Second
		deadline = s.timer.arm(dur, s.notifyExpired)
	}

	for _, e := range events {
		switch e.Type {
		case engine.EvtPickCommitted:
			s.record(recordOp{claim: &e.Claim})
			s.log.Info("pick committed",
				zap.Int("seq", e.Claim.Seq),
				zap.Int("seat", e.Claim.Seat),
				zap.Int("entry", e.Claim.EntryID),
				zap.Bool("auto", e.Claim.Auto))
		case engine.EvtDraftCompleted, engine.EvtSessionCancelled:
			s.record(recordOp{status: s.state.Status})
		}
	}

	s.checkInvariants()
	s.broadcast(events, deadline)
	return nil
}

// checkInvariants guards the serialization invariant the whole design
// rests on. A mismatch is a programmer error and must not be swallowed.
func (s *Session) checkInvariants() {
	sum := 0
	for _, byPos := range s.state.Counts {
		for _, n := range byPos {
			sum += n
		}
	}
	if sum != s.state.TotalClaims() {
		panic(fmt.Sprintf("session %s: claim total %d != count sum %d", s.code, s.state.TotalClaims(), sum))
	}
	for i, c := range s.state.Claims {
		if c.Seq != i+1 {
			panic(fmt.Sprintf("session %s: claim %d has seq %d", s.code, i, c.Seq))
		}
	}
}

func (s *Session) notifyExpired(gen uint64) {
	select {
	case s.timerCh <- gen:
	case <-s.ctx.Done():
	}
}

func (s *Session) broadcast(events []engine.Event, deadline time.Time) {
	for _, e := range events {
		out := Outbound{Version: s.version}
		switch e.Type {
		case engine.EvtDraftStarted:
			out.Type = OutDraftStarted
		case engine.EvtTurnAdvanced:
			out.Type = OutTurnChanged
			out.Seat = e.Seat
			out.Round = e.Round
			out.Deadline = deadline
		case engine.EvtPickCommitted:
			out.Type = OutPickCommitted
			claim := e.Claim
			out.Claim = &claim
		case engine.EvtDraftCompleted:
			out.Type = OutDraftCompleted
		case engine.EvtSessionCancelled:
			out.Type = OutSessionCancelled
		default:
			continue
		}
		s.fanOut(out)
	}
}

func (s *Session) fanOut(out Outbound) {
	for id, ch := range s.clients {
		select {
		case ch <- out:
		default:
			// Slow or wedged client: drop it rather than stall the draft.
			close(ch)
			delete(s.clients, id)
		}
	}
}

func (s *Session) view() View {
	counts := make(map[string]map[engine.Position]int, len(s.state.Counts))
	for pid, byPos := range s.state.Counts {
		cp := make(map[engine.Position]int, len(byPos))
		for pos, n := range byPos {
			cp[pos] = n
		}
		counts[pid] = cp
	}
	participants := make([]engine.Participant, len(s.state.Participants))
	copy(participants, s.state.Participants)

	v := View{
		Version:      s.version,
		NumClients:   len(s.clients),
		Status:       s.state.Status,
		TotalClaims:  s.state.TotalClaims(),
		Deadline:     s.timer.deadline,
		Participants: participants,
		Counts:       counts,
	}
	if s.state.Status == engine.StatusInProgress {
		onClock := s.state.OnClock()
		v.SeatOnClock = onClock.Seat
		v.OnClockID = onClock.ID
		v.Round = engine.RoundOf(s.state.TotalClaims(), len(s.state.Participants))
	}
	return v
}

func (s *Session) record(op recordOp) {
	if s.rec == nil {
		return
	}
	select {
	case s.recCh <- op:
	default:
		s.log.Warn("record queue full, dropping journal write")
	}
}

// recordLoop drains journal writes on its own goroutine so a slow
// database never stalls the turn clock. Order is preserved.
func (s *Session) recordLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case op := <-s.recCh:
			var err error
			if op.claim != nil {
				err = s.rec.RecordClaim(s.ctx, s.code, *op.claim)
			} else {
				err = s.rec.RecordStatus(s.ctx, s.code, op.status)
			}
			if err != nil {
				s.log.Warn("journal write failed", zap.Error(err))
			}
		}
	}
}

func (s *Session) shutdown() {
	s.timer.cancel()
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}

	// Cancel before taking the lock: a sender stuck on a full inbox
	// holds the lock until its select sees ctx done.
	s.cancel()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	// Anything already queued gets an answer, not silence. Senders that
	// arrive after the flag flipped are refused in Send, so this drain
	// sees the last message the session will ever accept.
	for {
		select {
		case m := <-s.inbox:
			rejectPending(m)
		default:
			return
		}
	}
}

func rejectPending(m Msg) {
	switch msg := m.(type) {
	case Join:
		close(msg.Outbox)
	case Start:
		msg.Reply <- engine.ErrSessionCancelled
	case PickRequest:
		msg.Reply <- engine.ErrSessionCancelled
	case Cancel:
		msg.Reply <- engine.ErrSessionCancelled
	case GetState:
		msg.Reply <- View{Status: engine.StatusCancelled}
	case GetClaims:
		msg.Reply <- nil
	}
}
