package engine

import "sync"

// Pool tracks which catalog entries have been claimed. TryClaim is the
// only way an availability bit flips; under concurrent callers exactly
// one claim for a given entry wins.
type Pool struct {
	mu      sync.Mutex
	claimed map[int]bool
}

func NewPool() *Pool {
	return &Pool{claimed: make(map[int]bool)}
}

func (p *Pool) Available(entryID int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.claimed[entryID]
}

func (p *Pool) TryClaim(entryID int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.claimed[entryID] {
		return false
	}
	p.claimed[entryID] = true
	return true
}

func (p *Pool) ClaimedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.claimed)
}
