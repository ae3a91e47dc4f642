package engine

import "fmt"

// Rules is the per-session configuration: squad size, the turn clock,
// and the maximum picks allowed per position. The position set comes
// from the catalog service (GK/DF/MF/FW for the default league) but is
// opaque here; whatever the table names is legal, everything else is a
// configuration error.
type Rules struct {
	SquadSize    int              `json:"squad_size"`
	TurnTimerSec int              `json:"turn_timer_sec"`
	PositionMax  map[Position]int `json:"position_max"`
}

// MaxAllowed never treats an unknown position as unlimited; the caller
// gets a configuration error instead of a silent pass.
func (r Rules) MaxAllowed(pos Position) (int, error) {
	max, ok := r.PositionMax[pos]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPosition, pos)
	}
	return max, nil
}

func (r Rules) validate() error {
	if r.SquadSize < 1 {
		return fmt.Errorf("squad size must be positive, got %d", r.SquadSize)
	}
	if r.TurnTimerSec < 1 {
		return fmt.Errorf("turn timer must be at least 1s, got %d", r.TurnTimerSec)
	}
	if len(r.PositionMax) == 0 {
		return fmt.Errorf("no position limits configured")
	}
	sum := 0
	for pos, max := range r.PositionMax {
		if max < 0 {
			return fmt.Errorf("negative limit for position %q", pos)
		}
		sum += max
	}
	// Caps below the squad size would strand every participant short.
	if sum < r.SquadSize {
		return fmt.Errorf("position limits sum to %d, below squad size %d", sum, r.SquadSize)
	}
	return nil
}
