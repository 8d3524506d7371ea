package orchestrator

import (
	"sync"

	"github.com/soundline/meetbot/bot"
)

// registry owns the in-memory records of all tracked bot instances, keyed by
// bot ID and by meeting-session ID. Entries are created only by the join
// coordinator and removed only by stop or janitor cleanup.
type registry struct {
	mu        sync.RWMutex
	byID      map[string]*bot.Instance
	bySession map[string]*bot.Instance
}

func newRegistry() *registry {
	return &registry{
		byID:      make(map[string]*bot.Instance),
		bySession: make(map[string]*bot.Instance),
	}
}

// insert registers the instance unless an active bot already exists for the
// same meeting session, in which case that instance is returned instead.
// The check and the insert are atomic to uphold the at-most-one invariant.
func (r *registry) insert(inst *bot.Instance) (*bot.Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.bySession[inst.MeetingSessionID]; ok && claims(existing) {
		return existing, false
	}
	r.byID[inst.ID] = inst
	r.bySession[inst.MeetingSessionID] = inst
	return inst, true
}

// remove deletes the instance from both maps. The session map is only
// cleared if it still points at this instance; a newer bot for the same
// session must not lose its entry.
func (r *registry) remove(inst *bot.Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, inst.ID)
	if cur, ok := r.bySession[inst.MeetingSessionID]; ok && cur == inst {
		delete(r.bySession, inst.MeetingSessionID)
	}
}

func (r *registry) get(id string) *bot.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

func (r *registry) getBySession(sessionID string) *bot.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySession[sessionID]
}

// activeBySession returns the instance for the session only if it still
// claims the session.
func (r *registry) activeBySession(sessionID string) *bot.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if inst, ok := r.bySession[sessionID]; ok && claims(inst) {
		return inst
	}
	return nil
}

// claims reports whether the instance blocks new joins for its session.
// Initializing counts: a bot between registration and its first status
// transition already owns the session.
func claims(inst *bot.Instance) bool {
	st := inst.Status()
	return st == bot.StatusInitializing || st.Active()
}

// list returns a snapshot of all tracked instances.
func (r *registry) list() []*bot.Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*bot.Instance, 0, len(r.byID))
	for _, inst := range r.byID {
		out = append(out, inst)
	}
	return out
}

// activeCount returns how many tracked instances are in an active state.
func (r *registry) activeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, inst := range r.byID {
		if inst.Status().Active() {
			n++
		}
	}
	return n
}
