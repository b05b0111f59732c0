package dialogue

import (
	"sync"
	"sync/atomic"
)

// Registry maps conversation keys to their sessions.
type Registry struct {
	sessions sync.Map
	count    atomic.Int64
	factory  func(key string) *Session
}

func NewRegistry(factory func(key string) *Session) *Registry {
	return &Registry{factory: factory}
}

// GetOrCreate returns the session for key, creating it on first contact.
// created is true when this call made the session.
func (r *Registry) GetOrCreate(key string) (sess *Session, created bool) {
	if v, ok := r.sessions.Load(key); ok {
		return v.(*Session), false
	}
	actual, loaded := r.sessions.LoadOrStore(key, r.factory(key))
	if loaded {
		return actual.(*Session), false
	}
	r.count.Add(1)
	return actual.(*Session), true
}

func (r *Registry) Get(key string) (*Session, bool) {
	if v, ok := r.sessions.Load(key); ok {
		return v.(*Session), true
	}
	return nil, false
}

// Remove drops the session for key, if any.
func (r *Registry) Remove(key string) bool {
	if _, ok := r.sessions.LoadAndDelete(key); ok {
		r.count.Add(-1)
		return true
	}
	return false
}

func (r *Registry) Count() int64 {
	return r.count.Load()
}
