package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pos_backend/checkout"
)

// Entry is a live session and the notices its operations raised since the
// last response.
type Entry struct {
	Session *checkout.Session
	OwnerID string

	notices  *checkout.NoticeRecorder
	lastUsed time.Time
}

// Notices drains the buffered notices.
func (e *Entry) Notices() []checkout.Notice {
	return e.notices.Drain()
}

// Registry holds the sessions of this process, keyed by session id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Entry
	deps     checkout.Dependencies
	now      func() time.Time
}

// NewRegistry builds sessions from a dependency template. The template's
// Notifier, if any, still receives every notice.
func NewRegistry(deps checkout.Dependencies) *Registry {
	return &Registry{
		sessions: make(map[string]*Entry),
		deps:     deps,
		now:      time.Now,
	}
}

func (r *Registry) Create(staff checkout.Staff, settings checkout.PointSettings) *Entry {
	recorder := &checkout.NoticeRecorder{}
	deps := r.deps
	deps.PointSettings = settings
	deps.Notifier = checkout.MultiNotifier{r.deps.Notifier, recorder}

	e := &Entry{
		Session:  checkout.NewSession(uuid.NewString(), staff, deps),
		OwnerID:  staff.ID,
		notices:  recorder,
		lastUsed: r.now(),
	}
	r.mu.Lock()
	r.sessions[e.Session.ID] = e
	r.mu.Unlock()
	return e
}

func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if ok {
		e.lastUsed = r.now()
	}
	return e, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle drops sessions untouched for longer than maxIdle and returns
// how many were dropped.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}
