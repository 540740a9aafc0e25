package observe_test

import (
	"testing"
	"time"

	"github.com/jaekwang-park/tasksync/internal/observe"
)

func receive(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	return 0
}

func TestSubject_PublishDoesNotBlockAndKeepsOrder(t *testing.T) {
	s := observe.New[int]()
	ch, cancel := s.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a subscriber that is not reading")
	}

	for i := 0; i < 1000; i++ {
		if got := receive(t, ch); got != i {
			t.Fatalf("got %d, want %d", got, i)
		}
	}
}

func TestSubject_FanOut(t *testing.T) {
	s := observe.New[int]()
	a, cancelA := s.Subscribe()
	defer cancelA()
	b, cancelB := s.Subscribe()
	defer cancelB()

	if s.Len() != 2 {
		t.Errorf("len = %d, want 2", s.Len())
	}

	s.Publish(7)
	if got := receive(t, a); got != 7 {
		t.Errorf("a got %d", got)
	}
	if got := receive(t, b); got != 7 {
		t.Errorf("b got %d", got)
	}
}

func TestSubject_CancelIsIdempotentAndClosesChannel(t *testing.T) {
	s := observe.New[int]()
	ch, cancel := s.Subscribe()

	cancel()
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel was not closed")
	}
	if s.Len() != 0 {
		t.Errorf("len = %d after cancel", s.Len())
	}

	// publishing after cancel must not panic
	s.Publish(1)
}

func TestSubject_LateSubscriberMissesEarlierValues(t *testing.T) {
	s := observe.New[int]()
	s.Publish(1)

	ch, cancel := s.Subscribe()
	defer cancel()
	s.Publish(2)

	if got := receive(t, ch); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

// closed waits for ch to close, discarding at most one in-flight value.
func closed(t *testing.T, ch <-chan int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for range 2 {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel was not closed")
		}
	}
	t.Fatal("channel still delivering after close")
}

func TestSubject_CloseEndsSubscriptions(t *testing.T) {
	s := observe.New[int]()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Publish(1)
	s.Publish(2)
	s.Close()

	closed(t, ch)
	if s.Len() != 0 {
		t.Errorf("len = %d after close", s.Len())
	}

	late, _ := s.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after close should return a closed channel")
	}
}

func TestSubject_CloseStopsIdleReaders(t *testing.T) {
	s := observe.New[int]()
	// never read from and never cancelled
	ch, _ := s.Subscribe()

	for i := range 10 {
		s.Publish(i)
	}
	// give the pump time to block on the unread channel
	time.Sleep(20 * time.Millisecond)
	s.Close()

	// the pump closes the channel on exit
	closed(t, ch)
}
