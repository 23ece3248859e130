package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sjawhar/interview-agent/internal/lease"
)

// Registry maps interview ids to their single resident Session.
type Registry struct {
	leaser Leaser
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds a registry. A nil leaser disables cross-instance
// ownership checks.
func NewRegistry(leaser Leaser) *Registry {
	return &Registry{leaser: leaser, now: time.Now, sessions: make(map[string]*Session)}
}

// GetOrCreate returns the resident session for id, creating it on first use.
// Concurrent callers with the same id all observe the same *Session.
func (r *Registry) GetOrCreate(ctx context.Context, id, candidateID, jobDescription string) (*Session, bool, error) {
	if s, err := r.Get(id); err == nil {
		return s, false, nil
	}

	if r.leaser != nil {
		if err := r.leaser.Acquire(ctx, id); err != nil {
			if errors.Is(err, lease.ErrHeld) {
				return nil, false, fmt.Errorf("%w: %s", ErrOwnedElsewhere, id)
			}
			return nil, false, fmt.Errorf("acquire lease: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, false, nil
	}
	s := newSession(id, candidateID, jobDescription, r.now())
	r.sessions[id] = s
	return s, true, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Remove evicts id and releases its lease.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.release(ctx, id)
}

// evict removes s only if it is still the resident session for its id.
func (r *Registry) evict(ctx context.Context, s *Session) error {
	r.mu.Lock()
	current, ok := r.sessions[s.ID]
	if !ok || current != s {
		r.mu.Unlock()
		return nil
	}
	delete(r.sessions, s.ID)
	r.mu.Unlock()
	return r.release(ctx, s.ID)
}

func (r *Registry) release(ctx context.Context, id string) error {
	if r.leaser == nil {
		return nil
	}
	if err := r.leaser.Release(ctx, id); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// renew extends the lease of a resident session. It fails if another
// instance has taken the lease over after it expired.
func (r *Registry) renew(ctx context.Context, id string) error {
	if r.leaser == nil {
		return nil
	}
	return r.leaser.Refresh(ctx, id)
}

// List returns the resident sessions ordered by id.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
