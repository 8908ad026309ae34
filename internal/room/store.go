package room

import "sync"

// Store is the single shared mutable cell holding the session snapshot.
// All provider operations funnel through it so every subscriber observes a
// consistent sequence of snapshots. Mutations are synchronous and never
// block; subscribers run on the mutating goroutine.
type Store struct {
	mu   sync.Mutex
	snap Snapshot
	subs []func(Snapshot)
}

// NewStore returns a store holding the default snapshot.
func NewStore() *Store {
	return &Store{snap: DefaultSnapshot()}
}

// State returns a copy of the current snapshot. The copy is safe to hold
// while the store keeps mutating.
func (s *Store) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// Set applies mutate to the current snapshot and publishes the result.
// mutate receives a private copy and returns the full replacement value.
func (s *Store) Set(mutate func(Snapshot) Snapshot) {
	s.mu.Lock()
	s.snap = mutate(s.snap.clone())
	next := s.snap.clone()
	subs := s.subs
	s.mu.Unlock()

	for _, sub := range subs {
		sub(next)
	}
}

// Replace swaps the entire snapshot for next.
func (s *Store) Replace(next Snapshot) {
	s.Set(func(Snapshot) Snapshot { return next })
}

// Subscribe registers fn to run after every mutation. There is no
// unsubscribe; subscriptions are meant to live for the session.
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}
