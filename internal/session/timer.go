package session

import "time"

type timerState int

const (
	timerIdle timerState = iota
	timerArmed
	timerFired
	timerCancelled
)

// deadlineTimer is the per-turn countdown. One instance per session,
// owned by the session loop; every arm bumps the generation so a fire
// from a cancelled instance can be told apart from the live one.
type deadlineTimer struct {
	state    timerState
	gen      uint64
	timer    *time.Timer
	deadline time.Time
}

// arm starts a fresh countdown and returns its deadline. Arming while
// a countdown is still live is a coordinator bug and panics rather
// than silently resetting.
func (d *deadlineTimer) arm(dur time.Duration, notify func(gen uint64)) time.Time {
	if d.state == timerArmed {
		panic("session: deadline timer armed while already armed")
	}
	d.gen++
	gen := d.gen
	d.state = timerArmed
	d.deadline = time.Now().Add(dur)
	d.timer = time.AfterFunc(dur, func() { notify(gen) })
	return d.deadline
}

func (d *deadlineTimer) cancel() {
	if d.state == timerArmed {
		d.timer.Stop()
		d.state = timerCancelled
	}
	d.deadline = time.Time{}
}

// accept reports whether a fire notification belongs to the live
// countdown. Stale generations and fires after cancel are refused.
func (d *deadlineTimer) accept(gen uint64) bool {
	if d.state != timerArmed || gen != d.gen {
		return false
	}
	d.state = timerFired
	d.deadline = time.Time{}
	return true
}
