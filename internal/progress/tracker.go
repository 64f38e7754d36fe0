// Package progress tracks the stage and percentage of in-flight federation
// requests. Each request gets its own handle keyed by a correlation id, so
// concurrent requests never overwrite each other's state; a poller passes
// the id it received when the request started.
package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrorPercent is the sentinel percentage reported for a failed request.
const ErrorPercent = -1

// retention is how long a finished request's state stays pollable.
const retention = time.Hour

// State is one snapshot of a request's progress.
type State struct {
	Percent int    `json:"progress"` // 0..100, or -1 on error
	Stage   string `json:"stage"`
	Error   string `json:"error,omitempty"`
}

type entry struct {
	state State
	at    time.Time
}

// Tracker holds per-request progress states. The zero value is not usable;
// call NewTracker.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]*entry
	latest string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]*entry)}
}

// Handle is the write side of one request's progress, returned to the code
// running the request.
type Handle struct {
	t  *Tracker
	id string
}

// Begin registers a new request and returns its handle. Entries older than
// the retention window are pruned here.
func (t *Tracker) Begin() *Handle {
	id := uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	for k, e := range t.states {
		if e.at.Before(cutoff) {
			delete(t.states, k)
		}
	}

	t.states[id] = &entry{state: State{Percent: 0, Stage: "Initializing..."}, at: time.Now()}
	t.latest = id
	return &Handle{t: t, id: id}
}

// ID returns the correlation id a poller uses to read this request's state.
func (h *Handle) ID() string { return h.id }

// Update overwrites the request's percent and stage.
func (h *Handle) Update(percent int, stage string) {
	h.t.set(h.id, State{Percent: percent, Stage: stage})
}

// Fail marks the request as errored so a poller observes the failure even if
// the original response was lost.
func (h *Handle) Fail(err error) {
	h.t.set(h.id, State{Percent: ErrorPercent, Stage: "Error", Error: err.Error()})
}

func (t *Tracker) set(id string, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.states[id]; ok {
		e.state = s
		e.at = time.Now()
	}
}

// Snapshot returns the state for id. An empty id reads the most recently
// started request, preserving id-less polling.
func (t *Tracker) Snapshot(id string) (State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id == "" {
		id = t.latest
	}
	e, ok := t.states[id]
	if !ok {
		return State{}, false
	}
	return e.state, true
}
