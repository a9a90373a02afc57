package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry indexes registered sessions by id and by name.
// Both indexes always change together.
type Registry struct {
	mu     sync.RWMutex
	byID   map[core.SessionID]*core.Session
	byName map[string]*core.Session
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[core.SessionID]*core.Session),
		byName: make(map[string]*core.Session),
	}
}

// Register binds name to the session. The name is validated and trimmed.
func (r *Registry) Register(sess *core.Session, name string) error {
	name, err := domain.ValidateUsername(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[sess.ID]; ok {
		return ErrInvalidState
	}
	if _, ok := r.byName[name]; ok {
		return ErrNameTaken
	}
	sess.Name = name
	r.byID[sess.ID] = sess
	r.byName[name] = sess
	log.Info().Str("module", "app.registry").Str("sid", string(sess.ID)).Str("name", name).Msg("registered")
	return nil
}

// Unregister is idempotent. The session keeps its struct but loses its name.
func (r *Registry) Unregister(sid core.SessionID) (*core.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byID[sid]
	if !ok {
		return nil, false
	}
	delete(r.byID, sid)
	delete(r.byName, sess.Name)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("name", sess.Name).Msg("unregistered")
	sess.Name = ""
	return sess, true
}

func (r *Registry) GetByID(sid core.SessionID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[sid]
	return s, ok
}

func (r *Registry) GetByName(name string) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Sessions returns registered sessions ordered by name.
func (r *Registry) Sessions() []*core.Session {
	r.mu.RLock()
	out := make([]*core.Session, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
