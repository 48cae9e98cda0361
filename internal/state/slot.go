package state

import "sync"

// Observable is the read side of a Slot.
type Observable[T any] interface {
	// Get returns the current value.
	Get() T

	// Subscribe calls fn with the current value immediately and then with
	// every subsequent value. The returned function cancels the subscription.
	Subscribe(fn func(T)) (cancel func())
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Slot is a single observable value cell with replay-of-one semantics.
//
// Subscribers are notified synchronously and in order. A subscriber must
// not call Set or Update on the slot that is notifying it.
type Slot[T any] struct {
	// emitMu serializes publication so every subscriber sees the same order.
	emitMu sync.Mutex

	mu     sync.RWMutex
	value  T
	subs   []subscriber[T] // copy-on-write
	nextID uint64
}

// NewSlot creates a slot holding initial.
func NewSlot[T any](initial T) *Slot[T] {
	return &Slot[T]{value: initial}
}

// Get returns the current value.
func (s *Slot[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and notifies all current subscribers.
func (s *Slot[T]) Set(v T) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.publish(v)
}

// Update replaces the value with fn(current) atomically with respect to
// other writers, then notifies subscribers.
func (s *Slot[T]) Update(fn func(T) T) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.publish(fn(s.Get()))
}

// Subscribe registers fn and immediately replays the current value to it.
func (s *Slot[T]) Subscribe(fn func(T)) (cancel func()) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	subs := make([]subscriber[T], len(s.subs), len(s.subs)+1)
	copy(subs, s.subs)
	s.subs = append(subs, subscriber[T]{id: id, fn: fn})
	current := s.value
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

// Subscribers returns the number of registered subscribers.
func (s *Slot[T]) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// publish must be called with emitMu held.
func (s *Slot[T]) publish(v T) {
	s.mu.Lock()
	s.value = v
	subs := s.subs
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
}

func (s *Slot[T]) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]subscriber[T], 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.id != id {
			subs = append(subs, sub)
		}
	}
	s.subs = subs
}
