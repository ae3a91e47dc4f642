package engine

import (
	"errors"
	"testing"
)

// 4 seats, squad of 2, one keeper and one forward each. Catalog holds
// exactly one GK and one FW per seat so caps bite quickly.
func newTestState(t *testing.T) State {
	t.Helper()

	rules := Rules{
		SquadSize:    2,
		TurnTimerSec: 45,
		PositionMax:  map[Position]int{"GK": 1, "FW": 1},
	}
	participants := []Participant{
		{ID: "p1", Seat: 1},
		{ID: "p2", Seat: 2},
		{ID: "p3", Seat: 3},
		{ID: "p4", Seat: 4, Bot: true},
	}
	catalog := make([]Entry, 0, 8)
	for i := 1; i <= 4; i++ {
		catalog = append(catalog, Entry{ID: i, Position: "GK"})
	}
	for i := 5; i <= 8; i++ {
		catalog = append(catalog, Entry{ID: i, Position: "FW"})
	}

	s, err := NewState(rules, participants, catalog)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

func startDraft(t *testing.T, s State) State {
	t.Helper()
	_, next, err := Apply(s, Command{Type: CmdStartDraft})
	if err != nil {
		t.Fatalf("StartDraft: %v", err)
	}
	return next
}

func containsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func TestNewState_RefusesBadConfig(t *testing.T) {
	good := func() ([]Participant, []Entry) {
		ps := []Participant{{ID: "a", Seat: 1}, {ID: "b", Seat: 2}}
		es := []Entry{{ID: 1, Position: "GK"}, {ID: 2, Position: "FW"}}
		return ps, es
	}
	rules := Rules{SquadSize: 1, TurnTimerSec: 10, PositionMax: map[Position]int{"GK": 1, "FW": 1}}

	cases := []struct {
		name string
		edit func(*Rules, *[]Participant, *[]Entry)
	}{
		{
			name: "duplicate seat",
			edit: func(r *Rules, ps *[]Participant, es *[]Entry) { (*ps)[1].Seat = 1 },
		},
		{
			name: "duplicate participant id",
			edit: func(r *Rules, ps *[]Participant, es *[]Entry) { (*ps)[1].ID = "a" },
		},
		{
			name: "unknown position in catalog",
			edit: func(r *Rules, ps *[]Participant, es *[]Entry) { (*es)[0].Position = "COACH" },
		},
		{
			name: "duplicate catalog id",
			edit: func(r *Rules, ps *[]Participant, es *[]Entry) { (*es)[1].ID = 1 },
		},
		{
			name: "caps below squad size",
			edit: func(r *Rules, ps *[]Participant, es *[]Entry) { r.SquadSize = 5 },
		},
		{
			name: "catalog smaller than total squads",
			edit: func(r *Rules, ps *[]Participant, es *[]Entry) { *es = (*es)[:1] },
		},
		{
			name: "zero turn timer",
			edit: func(r *Rules, ps *[]Participant, es *[]Entry) { r.TurnTimerSec = 0 },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := rules
			r.PositionMax = map[Position]int{"GK": 1, "FW": 1}
			ps, es := good()
			tc.edit(&r, &ps, &es)
			if _, err := NewState(r, ps, es); err == nil {
				t.Fatalf("expected configuration error")
			}
		})
	}
}

func TestApply_PickBeforeStartRejected(t *testing.T) {
	s := newTestState(t)
	_, _, err := Apply(s, Command{Type: CmdLockPick, ParticipantID: "p1", EntryID: 1})
	if !errors.Is(err, ErrDraftNotActive) {
		t.Fatalf("want ErrDraftNotActive, got %v", err)
	}
}

func TestApply_StartTwiceRejected(t *testing.T) {
	s := startDraft(t, newTestState(t))
	_, _, err := Apply(s, Command{Type: CmdStartDraft})
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("want ErrAlreadyStarted, got %v", err)
	}
}

func TestApply_StartEmitsFirstTurn(t *testing.T) {
	events, next, err := Apply(newTestState(t), Command{Type: CmdStartDraft})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if next.Status != StatusInProgress {
		t.Fatalf("want in_progress, got %s", next.Status)
	}
	if !containsEvent(events, EvtDraftStarted) || !containsEvent(events, EvtTurnAdvanced) {
		t.Fatalf("want DraftStarted + TurnAdvanced, got %+v", events)
	}
	for _, e := range events {
		if e.Type == EvtTurnAdvanced && (e.Seat != 1 || e.Round != 1) {
			t.Fatalf("first turn should be seat 1 round 1, got %+v", e)
		}
	}
}

func TestApply_RejectsOutOfTurnPick(t *testing.T) {
	s := startDraft(t, newTestState(t))
	_, _, err := Apply(s, Command{Type: CmdLockPick, ParticipantID: "p2", EntryID: 1})
	if !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("want ErrNotYourTurn, got %v", err)
	}
}

func TestApply_RejectsDuplicateClaim(t *testing.T) {
	s := startDraft(t, newTestState(t))

	_, s, err := Apply(s, Command{Type: CmdLockPick, ParticipantID: "p1", EntryID: 1})
	if err != nil {
		t.Fatalf("first pick: %v", err)
	}

	_, _, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: "p2", EntryID: 1})
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("want ErrAlreadyClaimed, got %v", err)
	}
}

func TestApply_RejectsUnknownEntryAsClaimed(t *testing.T) {
	s := startDraft(t, newTestState(t))
	_, _, err := Apply(s, Command{Type: CmdLockPick, ParticipantID: "p1", EntryID: 999})
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("want ErrAlreadyClaimed, got %v", err)
	}
}

func TestApply_RejectsPositionOverCap(t *testing.T) {
	s := startDraft(t, newTestState(t))
	// A ninth keeper beyond the fixture's 4+4 split.
	s.Catalog[9] = Entry{ID: 9, Position: "GK"}

	var err error
	_, s, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: "p1", EntryID: 1})
	if err != nil {
		t.Fatalf("first GK: %v", err)
	}

	// p1 is not on the clock again until pick 8, so walk the snake.
	for _, id := range []int{2, 3, 4, 5, 6, 7} {
		onClock := s.OnClock()
		_, s, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: onClock.ID, EntryID: id})
		if err != nil {
			t.Fatalf("pick %d: %v", id, err)
		}
	}

	// p1 already holds its one allowed GK; entry 9 is unclaimed, so the
	// rejection must come from the cap, not the pool.
	_, _, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: "p1", EntryID: 9})
	if !errors.Is(err, ErrPositionLimitReached) {
		t.Fatalf("want ErrPositionLimitReached, got %v", err)
	}
}

func TestApply_CapCheckedBeforeClaim(t *testing.T) {
	rules := Rules{
		SquadSize:    2,
		TurnTimerSec: 45,
		PositionMax:  map[Position]int{"GK": 1, "FW": 2},
	}
	participants := []Participant{{ID: "a", Seat: 1}, {ID: "b", Seat: 2}}
	catalog := []Entry{
		{ID: 1, Position: "GK"},
		{ID: 2, Position: "GK"},
		{ID: 3, Position: "FW"},
		{ID: 4, Position: "FW"},
	}
	s, err := NewState(rules, participants, catalog)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	s = startDraft(t, s)

	_, s, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: "a", EntryID: 1})
	if err != nil {
		t.Fatalf("first GK: %v", err)
	}
	// b, b is the snake order. b takes a GK then tries a second one.
	_, s, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: "b", EntryID: 2})
	if err != nil {
		t.Fatalf("b's GK: %v", err)
	}
	_, _, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: "b", EntryID: 2})
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("claimed entry: want ErrAlreadyClaimed, got %v", err)
	}

	// A hypothetical third keeper would trip the cap, not the pool.
	s.Catalog[5] = Entry{ID: 5, Position: "GK"}
	_, _, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: "b", EntryID: 5})
	if !errors.Is(err, ErrPositionLimitReached) {
		t.Fatalf("want ErrPositionLimitReached, got %v", err)
	}
}

func TestApply_SnakeScenario_N4Squad2(t *testing.T) {
	s := startDraft(t, newTestState(t))

	wantSeats := []int{1, 2, 3, 4, 4, 3, 2, 1}
	// Round 1 all GKs, round 2 all FWs so no cap interferes.
	entries := []int{1, 2, 3, 4, 5, 6, 7, 8}

	for i, wantSeat := range wantSeats {
		onClock := s.OnClock()
		if onClock.Seat != wantSeat {
			t.Fatalf("pick %d: want seat %d on clock, got %d", i, wantSeat, onClock.Seat)
		}
		var err error
		_, s, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: onClock.ID, EntryID: entries[i]})
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
	}

	if s.Status != StatusCompleted {
		t.Fatalf("want completed after %d picks, got %s", len(wantSeats), s.Status)
	}
	// Sequence numbers are dense and increasing.
	for i, c := range s.Claims {
		if c.Seq != i+1 {
			t.Fatalf("claim %d has seq %d", i, c.Seq)
		}
	}
	// Claims carry the round they were made in.
	if s.Claims[3].Round != 1 || s.Claims[4].Round != 2 {
		t.Fatalf("round tags wrong: %+v", s.Claims)
	}
}

func TestApply_CompletionExactness(t *testing.T) {
	s := startDraft(t, newTestState(t))
	entries := []int{1, 2, 3, 4, 5, 6, 7, 8}

	for i, id := range entries {
		onClock := s.OnClock()
		var events []Event
		var err error
		events, s, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: onClock.ID, EntryID: id})
		if err != nil {
			t.Fatalf("pick %d: %v", i, err)
		}
		completedNow := containsEvent(events, EvtDraftCompleted)
		if i < len(entries)-1 && completedNow {
			t.Fatalf("completed after %d picks, too early", i+1)
		}
		if i == len(entries)-1 && !completedNow {
			t.Fatalf("not completed after final pick")
		}
	}

	// Nothing is accepted afterward.
	_, _, err := Apply(s, Command{Type: CmdLockPick, ParticipantID: "p1", EntryID: 1})
	if !errors.Is(err, ErrDraftNotActive) {
		t.Fatalf("post-completion pick: want ErrDraftNotActive, got %v", err)
	}
	_, _, err = Apply(s, Command{Type: CmdTimeoutPick})
	if !errors.Is(err, ErrDraftNotActive) {
		t.Fatalf("post-completion timeout: want ErrDraftNotActive, got %v", err)
	}
}

func TestApply_TimeoutPicksLowestEligible(t *testing.T) {
	s := startDraft(t, newTestState(t))

	events, s, err := Apply(s, Command{Type: CmdTimeoutPick})
	if err != nil {
		t.Fatalf("timeout pick: %v", err)
	}
	var claim Claim
	for _, e := range events {
		if e.Type == EvtPickCommitted {
			claim = e.Claim
		}
	}
	if claim.EntryID != 1 {
		t.Fatalf("auto-pick should take lowest id 1, got %d", claim.EntryID)
	}
	if !claim.Auto {
		t.Fatalf("claim should be flagged auto")
	}
	if claim.ParticipantID != "p1" {
		t.Fatalf("auto-pick should act for the seat on the clock, got %s", claim.ParticipantID)
	}

	// Deterministic: the next expiration takes the next lowest id for p2.
	events, _, err = Apply(s, Command{Type: CmdTimeoutPick})
	if err != nil {
		t.Fatalf("second timeout pick: %v", err)
	}
	for _, e := range events {
		if e.Type == EvtPickCommitted && e.Claim.EntryID != 2 {
			t.Fatalf("want entry 2, got %d", e.Claim.EntryID)
		}
	}
}

func TestApply_TimeoutSkipsCappedPosition(t *testing.T) {
	rules := Rules{
		SquadSize:    2,
		TurnTimerSec: 45,
		PositionMax:  map[Position]int{"GK": 1, "FW": 1},
	}
	participants := []Participant{{ID: "a", Seat: 1}, {ID: "b", Seat: 2}}
	catalog := []Entry{
		{ID: 1, Position: "GK"},
		{ID: 2, Position: "GK"},
		{ID: 3, Position: "FW"},
		{ID: 4, Position: "FW"},
	}
	s, err := NewState(rules, participants, catalog)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	s = startDraft(t, s)

	_, s, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: "a", EntryID: 1})
	if err != nil {
		t.Fatalf("a's GK: %v", err)
	}
	_, s, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: "b", EntryID: 2})
	if err != nil {
		t.Fatalf("b's GK: %v", err)
	}

	// b is on the clock again holding a GK; entry 3 is the lowest id b
	// may still take.
	events, _, err := Apply(s, Command{Type: CmdTimeoutPick})
	if err != nil {
		t.Fatalf("timeout pick: %v", err)
	}
	for _, e := range events {
		if e.Type == EvtPickCommitted && e.Claim.EntryID != 3 {
			t.Fatalf("auto-pick should skip capped GK, got entry %d", e.Claim.EntryID)
		}
	}
}

func TestApply_CancelIsTerminal(t *testing.T) {
	s := startDraft(t, newTestState(t))

	events, s, err := Apply(s, Command{Type: CmdCancel})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !containsEvent(events, EvtSessionCancelled) {
		t.Fatalf("want SessionCancelled event")
	}
	if s.Status != StatusCancelled {
		t.Fatalf("want cancelled, got %s", s.Status)
	}

	_, _, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: "p1", EntryID: 1})
	if !errors.Is(err, ErrSessionCancelled) {
		t.Fatalf("pick after cancel: want ErrSessionCancelled, got %v", err)
	}
	_, _, err = Apply(s, Command{Type: CmdStartDraft})
	if !errors.Is(err, ErrSessionCancelled) {
		t.Fatalf("start after cancel: want ErrSessionCancelled, got %v", err)
	}
}

func TestApply_CountsTrackClaims(t *testing.T) {
	s := startDraft(t, newTestState(t))

	var err error
	_, s, err = Apply(s, Command{Type: CmdLockPick, ParticipantID: "p1", EntryID: 1})
	if err != nil {
		t.Fatalf("pick: %v", err)
	}

	if got := s.CountFor("p1", "GK"); got != 1 {
		t.Fatalf("p1 GK count: got %d, want 1", got)
	}
	if got := s.CountFor("p1", "FW"); got != 0 {
		t.Fatalf("p1 FW count: got %d, want 0", got)
	}

	sum := 0
	for _, byPos := range s.Counts {
		for _, n := range byPos {
			sum += n
		}
	}
	if sum != s.TotalClaims() {
		t.Fatalf("count sum %d != total claims %d", sum, s.TotalClaims())
	}
}
