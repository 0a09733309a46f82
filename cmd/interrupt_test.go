package cmd

import (
	"os"
	"sync"
	"testing"
	"time"
)

type stubEngine struct {
	mu      sync.Mutex
	busy    bool
	cancels int
}

func (s *stubEngine) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	return nil
}

func (s *stubEngine) InFlightID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busy {
		return "", false
	}
	return "c1", true
}

func (s *stubEngine) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

func TestWatchInterrupts(t *testing.T) {
	t.Run("first interrupt cancels, second exits", func(t *testing.T) {
		eng := &stubEngine{busy: true}
		sigs := make(chan os.Signal, 1)
		exited := make(chan int, 1)

		done := make(chan struct{})
		go func() {
			watchInterrupts(sigs, eng, func(code int) { exited <- code })
			close(done)
		}()

		sigs <- os.Interrupt
		deadline := time.After(2 * time.Second)
		for eng.cancelCount() == 0 {
			select {
			case <-deadline:
				t.Fatal("timeout waiting for cancel")
			case <-time.After(time.Millisecond):
			}
		}
		select {
		case code := <-exited:
			t.Fatalf("first interrupt must not exit, got code %d", code)
		default:
		}

		sigs <- os.Interrupt
		select {
		case code := <-exited:
			if code != 130 {
				t.Errorf("exit code = %d, want 130", code)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for exit")
		}
		<-done

		if got := eng.cancelCount(); got != 1 {
			t.Errorf("cancel count = %d, want 1", got)
		}
	})

	t.Run("interrupt while idle exits", func(t *testing.T) {
		eng := &stubEngine{busy: false}
		sigs := make(chan os.Signal, 1)
		exited := make(chan int, 1)

		go watchInterrupts(sigs, eng, func(code int) { exited <- code })

		sigs <- os.Interrupt
		select {
		case code := <-exited:
			if code != 130 {
				t.Errorf("exit code = %d, want 130", code)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for exit")
		}
		if got := eng.cancelCount(); got != 0 {
			t.Errorf("idle interrupt must not cancel, got %d cancels", got)
		}
	})
}
