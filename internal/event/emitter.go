// Package event provides a small typed publish/subscribe primitive.
// Collaborators that announce changes (configuration, editors, control
// sources) hand out owned Subscription handles; closing the handle
// deregisters the listener, so every acquisition has an explicit
// disposal path.
package event

import "sync"

// Emitter fans a value of type T out to all current subscribers.
// The zero value is ready to use.
type Emitter[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

// Subscribe registers fn and returns the handle that removes it again.
func (e *Emitter[T]) Subscribe(fn func(T)) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = make(map[int]func(T))
	}
	id := e.next
	e.next++
	e.subs[id] = fn
	return &Subscription{cancel: func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}}
}

// Emit delivers v to every subscriber registered at the time of the call.
// Handlers run on the caller's goroutine.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	fns := make([]func(T), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// Len reports the number of live subscriptions.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Subscription is an owned handle to a registered listener.
// Close is idempotent and safe on a nil receiver.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}
