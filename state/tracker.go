// Package state turns a stream of game-state snapshots into discrete kill events.
package state

import "sync"

// Snapshot is one inbound observation of the tracked player
type Snapshot struct {
	Identity      string
	Kills         uint
	HeadshotKills uint
}

// RoundState is the last committed baseline
type RoundState struct {
	Kills         uint
	HeadshotKills uint
	Identity      string
}

// HighlightEvent signals that a new kill should be voiced
type HighlightEvent struct {
	KillCount   uint
	IsHeadshot  bool
	IsFirstKill bool
	Identity    string
}

// Tracker owns the baseline and decides which snapshots fire events.
// Evaluate and commit run in one critical section so that two racing
// snapshots never both observe the same pre-update baseline.
type Tracker struct {
	mu       sync.RWMutex
	baseline RoundState
	allowed  string // empty = any identity
}

// NewTracker creates a tracker; allowed restricts evaluation to one identity
func NewTracker(allowed string) *Tracker {
	return &Tracker{allowed: allowed}
}

// Evaluate compares s against the baseline, returns the event if one fires,
// and commits s as the new baseline.
// Snapshots rejected by the allow-list leave the baseline untouched.
func (t *Tracker) Evaluate(s Snapshot) (HighlightEvent, bool) {
	if t.allowed != "" && s.Identity != t.allowed {
		return HighlightEvent{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.baseline
	owner := prev.Identity == "" || prev.Identity == s.Identity

	var ev HighlightEvent
	fired := owner && s.Kills > prev.Kills
	if fired {
		ev = HighlightEvent{
			KillCount:   s.Kills,
			IsHeadshot:  s.HeadshotKills > prev.HeadshotKills,
			IsFirstKill: s.Kills == 1,
			Identity:    s.Identity,
		}
	}

	// Commit unconditionally; a lower value starts a new round
	t.baseline = RoundState{
		Kills:         s.Kills,
		HeadshotKills: s.HeadshotKills,
		Identity:      s.Identity,
	}

	return ev, fired
}

// Baseline returns a copy of the committed state
func (t *Tracker) Baseline() RoundState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.baseline
}

// Allowed returns the identity filter, empty when unset
func (t *Tracker) Allowed() string {
	return t.allowed
}
