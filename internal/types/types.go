package types

import (
	"errors"
	"time"

	"github.com/wjkim9/fantasy11-draft-backend/internal/engine"
	"github.com/wjkim9/fantasy11-draft-backend/internal/session"
)

type ClientMessage struct {
	Type     string `json:"type"` // "PickPlayer" | "StartDraft" | "CancelSession"
	PlayerID int    `json:"player_id,omitempty"`
}

type ServerMessage struct {
	Type     string        `json:"type"`
	Version  int           `json:"version,omitempty"`
	Seat     int           `json:"seat,omitempty"`
	Round    int           `json:"round,omitempty"`
	Deadline *time.Time    `json:"deadline,omitempty"`
	Claim    *engine.Claim `json:"claim,omitempty"`
	Snapshot *Snapshot     `json:"snapshot,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Snapshot is the queryable turn state, shared by the websocket join
// message and the HTTP session endpoint.
type Snapshot struct {
	Version      int                       `json:"version"`
	Status       string                    `json:"status"`
	Round        int                       `json:"round,omitempty"`
	Seat         int                       `json:"seat,omitempty"`
	OnClock      string                    `json:"on_clock,omitempty"`
	Deadline     *time.Time                `json:"deadline,omitempty"`
	TotalClaims  int                       `json:"total_claims"`
	Participants []engine.Participant      `json:"participants"`
	Counts       map[string]map[string]int `json:"counts"`
}

func SnapshotFromView(v session.View) Snapshot {
	counts := make(map[string]map[string]int, len(v.Counts))
	for pid, byPos := range v.Counts {
		cp := make(map[string]int, len(byPos))
		for pos, n := range byPos {
			cp[string(pos)] = n
		}
		counts[pid] = cp
	}
	snap := Snapshot{
		Version:      v.Version,
		Status:       string(v.Status),
		Round:        v.Round,
		Seat:         v.SeatOnClock,
		OnClock:      v.OnClockID,
		TotalClaims:  v.TotalClaims,
		Participants: v.Participants,
		Counts:       counts,
	}
	if !v.Deadline.IsZero() {
		d := v.Deadline
		snap.Deadline = &d
	}
	return snap
}

func FromOutbound(out session.Outbound) ServerMessage {
	msg := ServerMessage{
		Type:    string(out.Type),
		Version: out.Version,
		Seat:    out.Seat,
		Round:   out.Round,
		Claim:   out.Claim,
	}
	if !out.Deadline.IsZero() {
		d := out.Deadline
		msg.Deadline = &d
	}
	if out.Snapshot != nil {
		snap := SnapshotFromView(*out.Snapshot)
		msg.Snapshot = &snap
	}
	return msg
}

// ReasonCode maps a typed rejection to its wire code. "Position" is
// this deployment's category attribute.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrDraftNotActive):
		return "draft_not_active"
	case errors.Is(err, engine.ErrAlreadyStarted):
		return "already_started"
	case errors.Is(err, engine.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, engine.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, engine.ErrPositionLimitReached):
		return "position_limit_reached"
	case errors.Is(err, engine.ErrUnknownPosition):
		return "unknown_position"
	case errors.Is(err, engine.ErrSessionCancelled):
		return "session_cancelled"
	default:
		return "internal"
	}
}
