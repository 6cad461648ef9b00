package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestLock_SerialisesSameKey(t *testing.T) {
	l := New()
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("APNA000000000001")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("Expected counter 50, got %d", counter)
	}
	if len(l.locks) != 0 {
		t.Errorf("Expected lock table to be empty, got %d entries", len(l.locks))
	}
}

func TestLockPair_OppositeOrderDoesNotDeadlock(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := l.LockPair("A", "B")
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := l.LockPair("B", "A")
			unlock()
		}()
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockPair deadlocked")
	}
}

func TestLockPair_SameKey(t *testing.T) {
	l := New()
	unlock := l.LockPair("A", "A")
	unlock()

	// the key must be free again
	unlock = l.Lock("A")
	unlock()
}
