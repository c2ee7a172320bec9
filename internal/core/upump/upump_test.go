package upump

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerFires(t *testing.T) {
	m := New(nil)
	defer m.Stop()
	var count int32
	w := m.AllocTimer(10*time.Millisecond, 0, func(any) { atomic.AddInt32(&count, 1) }, nil)
	w.Start()
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&count) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("expected exactly one fire for one-shot timer, got %d", count)
	}
}

func TestPeriodicTimerFiresMultipleTimes(t *testing.T) {
	m := New(nil)
	defer m.Stop()
	var count int32
	w := m.AllocTimer(5*time.Millisecond, 5*time.Millisecond, func(any) { atomic.AddInt32(&count, 1) }, nil)
	w.Start()
	time.Sleep(100 * time.Millisecond)
	w.Stop()
	if atomic.LoadInt32(&count) < 3 {
		t.Fatalf("expected several periodic fires, got %d", count)
	}
}

func TestSignalWakesLoop(t *testing.T) {
	m := New(nil)
	defer m.Stop()
	var fired int32
	w, err := m.AllocSignal(func(any) { atomic.StoreInt32(&fired, 1) }, nil)
	if err != nil {
		t.Skipf("signal watcher unsupported on this platform: %v", err)
	}
	w.Start()
	go w.Signal()
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&fired) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected signal watcher to fire")
	}
}

func TestIdlerOnlyFiresWhenQuiescent(t *testing.T) {
	m := New(nil)
	defer m.Stop()
	var idle int32
	idler := m.AllocIdler(func(any) { atomic.AddInt32(&idle, 1) }, nil)
	idler.Start()
	time.Sleep(30 * time.Millisecond)
	idler.Stop()
	if atomic.LoadInt32(&idle) == 0 {
		t.Fatalf("expected idler to fire at least once while loop otherwise quiescent")
	}
}

func TestClockMonotonic(t *testing.T) {
	c := NewSystemClock()
	a := c.Now()
	time.Sleep(2 * time.Millisecond)
	b := c.Now()
	if b <= a {
		t.Fatalf("expected monotonic clock to advance: a=%d b=%d", a, b)
	}
	if TicksToDuration(ClockFreq) != time.Second {
		t.Fatalf("expected ClockFreq ticks to equal one second")
	}
}
