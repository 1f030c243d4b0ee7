package writeq

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDo_RunsOp(t *testing.T) {
	q := New()
	ran := false
	if err := q.Do("a.md", func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("op did not run")
	}
}

func TestDo_PropagatesError(t *testing.T) {
	q := New()
	want := errors.New("disk full")
	if err := q.Do("a.md", func() error { return want }); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestDo_SerializesPerKeyInSubmissionOrder(t *testing.T) {
	q := New()

	gate := make(chan struct{})
	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = q.Do("a.md", func() error {
			<-gate
			mu.Lock()
			order = append(order, 0)
			mu.Unlock()
			return nil
		})
	}()

	// Wait until the first op holds the key.
	for !q.Pending("a.md") {
		time.Sleep(time.Millisecond)
	}

	// Enqueue followers one at a time so submission order is fixed.
	for i := 1; i <= 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do("a.md", func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		time.Sleep(10 * time.Millisecond)
	}

	close(gate)
	wg.Wait()

	if len(order) != 6 {
		t.Fatalf("order = %v", order)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want strict submission order", order)
		}
	}
}

func TestDo_NeverConcurrentForOneKey(t *testing.T) {
	q := New()
	var active, maxActive int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do("a.md", func() error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent ops = %d, want 1", maxActive)
	}
}

func TestDo_KeysIndependent(t *testing.T) {
	q := New()
	blockA := make(chan struct{})
	aStarted := make(chan struct{})

	go func() {
		_ = q.Do("a.md", func() error {
			close(aStarted)
			<-blockA
			return nil
		})
	}()
	<-aStarted

	done := make(chan struct{})
	go func() {
		_ = q.Do("b.md", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("op on independent key blocked behind another key")
	}
	close(blockA)
}

func TestDo_ErrorDoesNotJamQueue(t *testing.T) {
	q := New()
	_ = q.Do("a.md", func() error { return errors.New("boom") })
	if err := q.Do("a.md", func() error { return nil }); err != nil {
		t.Errorf("queue jammed after failed op: %v", err)
	}
}

func TestDo_NoEntryAfterDrain(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do("a.md", func() error { return nil })
		}()
	}
	wg.Wait()

	if q.Pending("a.md") {
		t.Error("drained key still has a queue entry")
	}
}
