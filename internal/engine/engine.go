package engine

import (
	"errors"
	"fmt"
	"sort"
)

var ErrDraftNotActive = errors.New("draft not active")
var ErrAlreadyStarted = errors.New("draft already started")
var ErrNotYourTurn = errors.New("not your turn")
var ErrAlreadyClaimed = errors.New("player already claimed")
var ErrPositionLimitReached = errors.New("position limit reached")
var ErrUnknownPosition = errors.New("unknown position")
var ErrSessionCancelled = errors.New("session cancelled")
var ErrNoEligibleEntry = errors.New("no eligible player left")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Position string

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type Participant struct {
	ID   string `json:"id"`
	Seat int    `json:"seat"`
	Bot  bool   `json:"bot"`
}

// Entry is one selectable player. Name/Team/Pic come from the catalog
// service and are opaque here; the engine only reads ID and Position.
type Entry struct {
	ID       int      `json:"id"`
	Position Position `json:"position"`
	Name     string   `json:"name"`
	Team     string   `json:"team"`
	Pic      string   `json:"pic,omitempty"`
}

// Claim is one committed pick. Claims are append-only; the ordered
// slice of Claims is the authoritative draft history.
type Claim struct {
	Seq           int      `json:"seq"`
	Round         int      `json:"round"`
	Seat          int      `json:"seat"`
	ParticipantID string   `json:"participant_id"`
	EntryID       int      `json:"entry_id"`
	Position      Position `json:"position"`
	Auto          bool     `json:"auto"`
}

type State struct {
	Status       Status
	Rules        Rules
	Participants []Participant // sorted by seat, fixed for the session
	Catalog      map[int]Entry
	Pool         *Pool
	Claims       []Claim
	Counts       map[string]map[Position]int
}

type CommandType string

const (
	CmdStartDraft  CommandType = "StartDraft"
	CmdLockPick    CommandType = "LockPick"
	CmdTimeoutPick CommandType = "TimeoutPick"
	CmdCancel      CommandType = "CancelSession"
)

type Command struct {
	Type          CommandType
	ParticipantID string
	EntryID       int
}

type EventType string

const (
	EvtDraftStarted     EventType = "DraftStarted"
	EvtPickCommitted    EventType = "PickCommitted"
	EvtTurnAdvanced     EventType = "TurnAdvanced"
	EvtDraftCompleted   EventType = "DraftCompleted"
	EvtSessionCancelled EventType = "SessionCancelled"
)

type Event struct {
	Type  EventType
	Seat  int   // TurnAdvanced: the seat now on the clock
	Round int   // TurnAdvanced: 1-based round
	Claim Claim // PickCommitted only
}

// NewState validates the session configuration and builds the initial
// state. Configuration errors here are fatal: a session must refuse to
// exist rather than run with undefined limits.
func NewState(rules Rules, participants []Participant, catalog []Entry) (State, error) {
	if err := rules.validate(); err != nil {
		return State{}, err
	}
	if len(participants) < 2 {
		return State{}, fmt.Errorf("roster needs at least 2 participants, got %d", len(participants))
	}

	seats := make(map[int]bool, len(participants))
	ids := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p.Seat < 1 {
			return State{}, fmt.Errorf("participant %q has invalid seat %d", p.ID, p.Seat)
		}
		if seats[p.Seat] {
			return State{}, fmt.Errorf("duplicate seat %d", p.Seat)
		}
		if p.ID == "" || ids[p.ID] {
			return State{}, fmt.Errorf("duplicate or empty participant id %q", p.ID)
		}
		seats[p.Seat] = true
		ids[p.ID] = true
	}

	ordered := make([]Participant, len(participants))
	copy(ordered, participants)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seat < ordered[j].Seat })

	if len(catalog) < len(participants)*rules.SquadSize {
		return State{}, fmt.Errorf("catalog has %d players, need %d", len(catalog), len(participants)*rules.SquadSize)
	}

	byID := make(map[int]Entry, len(catalog))
	for _, e := range catalog {
		if _, dup := byID[e.ID]; dup {
			return State{}, fmt.Errorf("duplicate catalog entry %d", e.ID)
		}
		if _, err := rules.MaxAllowed(e.Position); err != nil {
			return State{}, fmt.Errorf("catalog entry %d: %w", e.ID, err)
		}
		byID[e.ID] = e
	}

	counts := make(map[string]map[Position]int, len(ordered))
	for _, p := range ordered {
		counts[p.ID] = make(map[Position]int)
	}

	return State{
		Status:       StatusNotStarted,
		Rules:        rules,
		Participants: ordered,
		Catalog:      byID,
		Pool:         NewPool(),
		Claims:       []Claim{},
		Counts:       counts,
	}, nil
}

func (s State) TotalClaims() int { return len(s.Claims) }

func (s State) Completed() bool {
	return s.TotalClaims() == len(s.Participants)*s.Rules.SquadSize
}

// OnClock resolves the participant whose turn it is from draft progress
// alone. Nothing else may advance or guess the turn.
func (s State) OnClock() Participant {
	idx := TurnIndex(s.TotalClaims(), len(s.Participants))
	return s.Participants[idx]
}

func (s State) CountFor(participantID string, pos Position) int {
	return s.Counts[participantID][pos]
}

func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdStartDraft:
		switch s.Status {
		case StatusCancelled:
			return nil, s, ErrSessionCancelled
		case StatusNotStarted:
		default:
			return nil, s, ErrAlreadyStarted
		}
		newState := s
		newState.Status = StatusInProgress
		first := newState.OnClock()
		events := []Event{
			{Type: EvtDraftStarted},
			{Type: EvtTurnAdvanced, Seat: first.Seat, Round: 1},
		}
		return events, newState, nil

	case CmdLockPick:
		claim, err := arbitrate(s, cmd.ParticipantID, cmd.EntryID, false)
		if err != nil {
			return nil, s, err
		}
		return commit(s, claim)

	case CmdTimeoutPick:
		// The seat on the clock resolves on expiration, human or bot
		// alike: bots never wait, humans forfeit the turn to auto-pick.
		if s.Status == StatusCancelled {
			return nil, s, ErrSessionCancelled
		}
		if s.Status != StatusInProgress {
			return nil, s, ErrDraftNotActive
		}
		onClock := s.OnClock()
		entryID, ok := autoPickCandidate(s, onClock.ID)
		if !ok {
			return nil, s, ErrNoEligibleEntry
		}
		claim, err := arbitrate(s, onClock.ID, entryID, true)
		if err != nil {
			return nil, s, err
		}
		return commit(s, claim)

	case CmdCancel:
		switch s.Status {
		case StatusCancelled:
			return nil, s, ErrSessionCancelled
		case StatusCompleted:
			return nil, s, ErrDraftNotActive
		}
		newState := s
		newState.Status = StatusCancelled
		return []Event{{Type: EvtSessionCancelled}}, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// arbitrate runs the pick checks in their fixed order; the first
// failing check wins. It claims the entry but never advances the turn.
func arbitrate(s State, participantID string, entryID int, auto bool) (Claim, error) {
	if s.Status == StatusCancelled {
		return Claim{}, ErrSessionCancelled
	}
	if s.Status != StatusInProgress {
		return Claim{}, ErrDraftNotActive
	}

	onClock := s.OnClock()
	if participantID != onClock.ID {
		return Claim{}, ErrNotYourTurn
	}

	entry, exists := s.Catalog[entryID]
	if !exists || !s.Pool.Available(entryID) {
		return Claim{}, ErrAlreadyClaimed
	}

	max, err := s.Rules.MaxAllowed(entry.Position)
	if err != nil {
		return Claim{}, err
	}
	if s.CountFor(participantID, entry.Position) >= max {
		return Claim{}, ErrPositionLimitReached
	}

	// Losing the claim race is an expected rejection, never a crash.
	if !s.Pool.TryClaim(entryID) {
		return Claim{}, ErrAlreadyClaimed
	}

	total := s.TotalClaims()
	return Claim{
		Seq:           total + 1,
		Round:         RoundOf(total, len(s.Participants)),
		Seat:          onClock.Seat,
		ParticipantID: participantID,
		EntryID:       entryID,
		Position:      entry.Position,
		Auto:          auto,
	}, nil
}

func commit(s State, claim Claim) ([]Event, State, error) {
	newState := s
	newState.Claims = append(newState.Claims, claim)
	newState.Counts[claim.ParticipantID][claim.Position]++

	events := []Event{{Type: EvtPickCommitted, Claim: claim}}

	if newState.Completed() {
		newState.Status = StatusCompleted
		events = append(events, Event{Type: EvtDraftCompleted})
		return events, newState, nil
	}

	next := newState.OnClock()
	events = append(events, Event{
		Type:  EvtTurnAdvanced,
		Seat:  next.Seat,
		Round: RoundOf(newState.TotalClaims(), len(newState.Participants)),
	})
	return events, newState, nil
}

// autoPickCandidate picks the lowest-id available entry the participant
// may still take under the position caps. Deterministic so that timed
// out turns are reproducible.
func autoPickCandidate(s State, participantID string) (int, bool) {
	ids := make([]int, 0, len(s.Catalog))
	for id := range s.Catalog {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if !s.Pool.Available(id) {
			continue
		}
		entry := s.Catalog[id]
		max, err := s.Rules.MaxAllowed(entry.Position)
		if err != nil {
			continue
		}
		if s.CountFor(participantID, entry.Position) >= max {
			continue
		}
		return id, true
	}
	return 0, false
}
