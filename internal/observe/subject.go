// Package observe provides a small typed publish/subscribe subject.
package observe

import "sync"

// Subject fans values out to subscribers. Publish never blocks; each
// subscriber has its own ordered backlog, so a slow reader delays only itself.
type Subject[T any] struct {
	mu     sync.Mutex
	subs   map[int]*subscriber[T]
	nextID int
	closed bool
}

type subscriber[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	backlog []T
	done    bool
	out     chan T
	quit    chan struct{}
	once    sync.Once
}

func New[T any]() *Subject[T] {
	return &Subject[T]{subs: make(map[int]*subscriber[T])}
}

// Subscribe returns a channel receiving every value published from now on
// and a cancel func. Cancel is idempotent and closes the channel; values still
// in the backlog at that point are dropped.
func (s *Subject[T]) Subscribe() (<-chan T, func()) {
	sub := &subscriber[T]{out: make(chan T), quit: make(chan struct{})}
	sub.cond = sync.NewCond(&sub.mu)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.out)
		return sub.out, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	go sub.pump()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.stop()
	}
	return sub.out, cancel
}

func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		sub.push(v)
	}
}

// Len reports the number of live subscribers.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close ends every subscription, including ones nobody reads from anymore.
// Values not yet delivered are dropped. Later Subscribe calls get a closed
// channel.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[int]*subscriber[T])
	s.closed = true
	s.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

func (sub *subscriber[T]) push(v T) {
	sub.mu.Lock()
	if !sub.done {
		sub.backlog = append(sub.backlog, v)
		sub.cond.Signal()
	}
	sub.mu.Unlock()
}

// stop discards the backlog and ends the pump, even one blocked on a send.
// It is safe to call more than once.
func (sub *subscriber[T]) stop() {
	sub.once.Do(func() {
		sub.mu.Lock()
		sub.done = true
		sub.backlog = nil
		sub.cond.Signal()
		sub.mu.Unlock()
		close(sub.quit)
	})
}

func (sub *subscriber[T]) pump() {
	defer close(sub.out)
	for {
		sub.mu.Lock()
		for len(sub.backlog) == 0 && !sub.done {
			sub.cond.Wait()
		}
		if len(sub.backlog) == 0 {
			sub.mu.Unlock()
			return
		}
		v := sub.backlog[0]
		var zero T
		sub.backlog[0] = zero
		sub.backlog = sub.backlog[1:]
		sub.mu.Unlock()

		select {
		case sub.out <- v:
		case <-sub.quit:
			return
		}
	}
}
