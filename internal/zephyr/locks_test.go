package zephyr

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithLockSameKeySerializes(t *testing.T) {
	locks := NewIssueLocks()
	var inside atomic.Int32
	var overlapped atomic.Bool

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.WithLock("TEST-1", func() error {
				if inside.Add(1) > 1 {
					overlapped.Store(true)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	if overlapped.Load() {
		t.Fatal("critical sections overlapped for the same issue")
	}
}

func TestWithLockDifferentKeysParallel(t *testing.T) {
	locks := NewIssueLocks()
	release := make(chan struct{})
	holding := make(chan struct{})

	go locks.WithLock("TEST-1", func() error {
		close(holding)
		<-release
		return nil
	})
	<-holding

	done := make(chan struct{})
	go func() {
		locks.WithLock("TEST-2", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different issues blocked each other")
	}
	close(release)
}

func TestWithLockPropagatesError(t *testing.T) {
	locks := NewIssueLocks()
	want := "boom"
	err := locks.WithLock("TEST-1", func() error { return errTest(want) })
	if err == nil || err.Error() != want {
		t.Fatalf("err = %v", err)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
