// Package deal implements the process-wide mutual-exclusion primitive of
// spec §4.E/§4.G/§5: it serializes non-reentrant native library calls
// (codec opens in particular) across every pipe and every event loop in the
// process, using a briefly held internal lock plus a FIFO queue of per-loop
// wakeup watchers. The deal itself is never a blocking lock — Grab returns
// at once — since a pipe must never block its own event loop waiting for
// the deal (spec §5: "callbacks ... must not block on I/O").
//
// Grounded on the teacher's single-flight style gating in
// internal/rtmp/conn/control_burst.go (one negotiation allowed to proceed
// at a time, others wait for a state transition) generalized from "one TCP
// connection's control burst" to "one process-wide critical section shared
// by every pipe".
package deal

import (
	"sync"

	"github.com/alxayo/streamengine/internal/core/upump"
)

// Deal is a process-wide exclusion primitive. The zero value is ready to
// use.
type Deal struct {
	mu      sync.Mutex
	held    bool
	waiters []*Watcher
}

// New creates an unheld Deal.
func New() *Deal {
	return &Deal{}
}

// Grab attempts exclusive acquisition without blocking, returning whether it
// succeeded.
func (d *Deal) Grab() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.held {
		return false
	}
	d.held = true
	return true
}

// Yield releases a held deal and wakes the next waiter in FIFO order, if
// any. w is the watcher of the caller releasing the deal (it is removed
// from the waiter queue if present, a no-op if the caller never waited).
func (d *Deal) Yield(w *Watcher) {
	d.mu.Lock()
	d.held = false
	d.removeLocked(w)
	var next *Watcher
	if len(d.waiters) > 0 {
		next = d.waiters[0]
		d.waiters = d.waiters[1:]
	}
	d.mu.Unlock()
	if next != nil {
		next.wake()
	}
}

// Abort cancels a pending waiter, removing it from the queue so it is never
// woken. Safe to call whether or not w is currently queued.
func (d *Deal) Abort(w *Watcher) {
	d.mu.Lock()
	d.removeLocked(w)
	d.mu.Unlock()
}

func (d *Deal) removeLocked(w *Watcher) {
	for i, ww := range d.waiters {
		if ww == w {
			d.waiters = append(d.waiters[:i], d.waiters[i+1:]...)
			return
		}
	}
}

// enqueue adds w to the waiter queue. Called by Watcher.Wait when Grab
// fails.
func (d *Deal) enqueue(w *Watcher) {
	d.mu.Lock()
	d.waiters = append(d.waiters, w)
	d.mu.Unlock()
}

// Watcher is the handle a pipe builds via AllocWatcher: an upump signal
// watcher bound to the pipe's own event loop, so the deal can wake exactly
// that loop without crossing thread boundaries unsafely (spec §4.E/§5: "a
// semaphore-like queue of watchers, each bound to its owning event loop").
type Watcher struct {
	deal *Deal
	up   *upump.Watcher
	cb   func()
}

// AllocWatcher builds a watcher that, when woken by a Yield on this Deal,
// invokes cb on mgr's loop — the caller is expected to retry Grab from
// inside cb.
func (d *Deal) AllocWatcher(mgr *upump.Manager, cb func()) (*Watcher, error) {
	w := &Watcher{deal: d, cb: cb}
	up, err := mgr.AllocSignal(func(any) {
		if w.cb != nil {
			w.cb()
		}
	}, nil)
	if err != nil {
		return nil, err
	}
	up.Start()
	w.up = up
	return w, nil
}

// Wait registers this watcher as waiting for the deal to become available.
// Call this after a failed Grab.
func (w *Watcher) Wait() {
	w.deal.enqueue(w)
}

// Close releases the underlying upump watcher. Callers must Abort before
// Close if the watcher might still be queued.
func (w *Watcher) Close() {
	w.deal.Abort(w)
	w.up.Release()
}

func (w *Watcher) wake() {
	w.up.Signal()
}
