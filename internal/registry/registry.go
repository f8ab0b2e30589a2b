// Package registry is the subscription registry collaborator boundary:
// it records which followers may open the encrypted /fanout stream and
// the shared secret their key is derived from. The HTTP control surface
// looks a follower up when /fanout is opened; the encrypted sink then
// sends that follower every batch, and Subscriber.Matches is not applied
// to what it sends. The registry itself is an
// external, optional collaborator (an eventual Postgres-backed service);
// this package only defines the contract plus an in-memory stand-in so
// the gateway runs with it unconfigured.
package registry

import (
	"sync"

	"novarelay.dev/pkg/event"
	"novarelay.dev/pkg/filter"
)

// Subscriber is one follower registered for the encrypted fanout sink.
type Subscriber struct {
	ID           string
	SharedSecret []byte
	Filter       *filter.Policy
}

// Matches reports whether ev passes this subscriber's filter.
func (s Subscriber) Matches(ev *event.E) bool {
	if s.Filter == nil {
		return true
	}
	return s.Filter.Allow(ev)
}

// Registry is the narrow contract the HTTP control surface depends on to
// resolve /fanout subscribers. The real
// implementation lives outside this module, backed by Postgres per the
// `postgres` config section; it is reached over the HTTP control
// surface, never called into from inside the dedup/routing pipeline.
type Registry interface {
	// Subscribers returns every follower currently registered.
	Subscribers() []Subscriber
	// Subscriber looks up one follower by id.
	Subscriber(id string) (Subscriber, bool)
	// Register adds or replaces a follower's registration.
	Register(sub Subscriber)
	// Unregister removes a follower's registration.
	Unregister(id string)
}

// InMemory is a process-local Registry, used when no external
// subscription store is configured (the `postgres` section is absent).
type InMemory struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
}

// NewInMemory creates an empty in-memory registry.
func NewInMemory() *InMemory {
	return &InMemory{subs: make(map[string]Subscriber)}
}

func (r *InMemory) Subscribers() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

func (r *InMemory) Subscriber(id string) (Subscriber, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[id]
	return s, ok
}

func (r *InMemory) Register(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.ID] = sub
}

func (r *InMemory) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
}

var _ Registry = (*InMemory)(nil)
