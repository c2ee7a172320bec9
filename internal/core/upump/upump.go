// Package upump implements the event loop abstraction of spec §4.C: a
// single-threaded manager that multiplexes timers, fd-readable/writable
// watchers, idlers, and a cross-thread signal watcher, plus the 27 MHz
// Clock.
//
// The dispatch loop is grounded on the teacher's connection read/write
// loops (internal/rtmp/conn/conn.go startReadLoop/startWriteLoop): one
// goroutine per manager, a context for cancellation, and callbacks that run
// to completion without preempting each other. Where the teacher spins a
// dedicated goroutine per net.Conn, a Manager here centralizes many
// watchers behind one loop so pipes attached to the same manager share its
// strict call-chain semantics (spec §5).
package upump

import (
	"context"
	"sync"
	"time"

	"github.com/alxayo/streamengine/internal/core/refcount"
)

// Kind identifies the watcher variety.
type Kind int

const (
	KindTimer Kind = iota
	KindFDReadable
	KindFDWritable
	KindIdler
	KindSignal
)

// Watcher is a handle to a registered callback. Opaque carries caller state
// (mirrors the C API's void *opaque); Source marks the watcher as backing a
// data source, which the manager uses for very simple backpressure: sources
// are only fired while the manager isn't explicitly paused (see
// Manager.PauseSources).
type Watcher struct {
	id     uint64
	kind   Kind
	opaque any
	cb     func(opaque any)
	ref    *refcount.RefCount
	source bool

	mgr     *Manager
	started bool

	// timer fields
	delay, period time.Duration
	nextFire      time.Time

	// fd fields
	fd int

	// signal fields
	sig *signalImpl
}

// Opaque returns the caller-supplied opaque value.
func (w *Watcher) Opaque() any { return w.opaque }

// Manager is the event loop. The zero value is not usable; use New.
type Manager struct {
	mu       sync.Mutex
	watchers map[uint64]*Watcher
	nextID   uint64
	clock    Clock

	pauseSources bool

	cmdCh  chan func()
	doneCh chan struct{}
	cancel context.CancelFunc

	poller poller
}

// New creates a Manager and starts its loop goroutine.
func New(clock Clock) *Manager {
	if clock == nil {
		clock = NewSystemClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		watchers: make(map[uint64]*Watcher),
		clock:    clock,
		cmdCh:    make(chan func(), 64),
		doneCh:   make(chan struct{}),
		cancel:   cancel,
	}
	m.poller = newPoller()
	go m.loop(ctx)
	return m
}

// Clock returns the manager's clock.
func (m *Manager) Clock() Clock { return m.clock }

// Stop tears down the manager: every watcher owned by it stops firing and
// the loop goroutine exits (spec: releasing a pipe/manager stops and frees
// all its watchers synchronously).
func (m *Manager) Stop() {
	m.cancel()
	<-m.doneCh
}

// PauseSources / ResumeSources implement the coarse backpressure scheme:
// while paused, watchers flagged Source do not fire, modeling "sources
// block when sinks are blocked" (spec §4.C).
func (m *Manager) PauseSources() {
	m.mu.Lock()
	m.pauseSources = true
	m.mu.Unlock()
}

func (m *Manager) ResumeSources() {
	m.mu.Lock()
	m.pauseSources = false
	m.mu.Unlock()
}

func (m *Manager) nextWatcherID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID
}

// AllocTimer creates a timer watcher firing after delay, then every period
// (period==0 means one-shot). It is not started until Start is called.
func (m *Manager) AllocTimer(delay, period time.Duration, cb func(opaque any), opaque any) *Watcher {
	w := &Watcher{id: m.nextWatcherID(), kind: KindTimer, cb: cb, opaque: opaque, mgr: m, delay: delay, period: period}
	w.ref = refcount.New(func() { m.free(w) })
	return w
}

// AllocIdler creates an idler watcher: it fires only when no other watcher
// fired in the same loop iteration.
func (m *Manager) AllocIdler(cb func(opaque any), opaque any) *Watcher {
	w := &Watcher{id: m.nextWatcherID(), kind: KindIdler, cb: cb, opaque: opaque, mgr: m}
	w.ref = refcount.New(func() { m.free(w) })
	return w
}

// AllocFDReadable/AllocFDWritable create fd watchers. source marks the
// watcher as a data source for PauseSources/ResumeSources backpressure.
func (m *Manager) AllocFDReadable(fd int, source bool, cb func(opaque any), opaque any) *Watcher {
	w := &Watcher{id: m.nextWatcherID(), kind: KindFDReadable, fd: fd, source: source, cb: cb, opaque: opaque, mgr: m}
	w.ref = refcount.New(func() { m.free(w) })
	return w
}

func (m *Manager) AllocFDWritable(fd int, cb func(opaque any), opaque any) *Watcher {
	w := &Watcher{id: m.nextWatcherID(), kind: KindFDWritable, fd: fd, cb: cb, opaque: opaque, mgr: m}
	w.ref = refcount.New(func() { m.free(w) })
	return w
}

// AllocSignal creates a cross-thread wakeup watcher (ueventfd): non-
// blocking, readable-one-shot, safe to Signal from any goroutine while this
// manager's loop reads it.
func (m *Manager) AllocSignal(cb func(opaque any), opaque any) (*Watcher, error) {
	sig, err := newSignal()
	if err != nil {
		return nil, err
	}
	w := &Watcher{id: m.nextWatcherID(), kind: KindSignal, cb: cb, opaque: opaque, mgr: m, sig: sig}
	w.ref = refcount.New(func() { sig.close(); m.free(w) })
	return w, nil
}

// Signal wakes the manager loop from any goroutine. Only valid for signal
// watchers.
func (w *Watcher) Signal() {
	if w.kind != KindSignal || w.sig == nil {
		return
	}
	w.sig.signal()
}

// Start arms the watcher. Safe to call from any goroutine; the actual
// registration happens on the loop goroutine to preserve single-threaded
// semantics.
func (w *Watcher) Start() {
	w.mgr.submit(func() {
		w.started = true
		if w.kind == KindTimer {
			w.nextFire = time.Now().Add(w.delay)
		}
		w.mgr.register(w)
	})
}

// Stop disarms the watcher without freeing it; Start may be called again.
func (w *Watcher) Stop() {
	w.mgr.submit(func() {
		w.started = false
		w.mgr.unregister(w)
	})
}

// Restart stops then starts the watcher, resetting timer phase.
func (w *Watcher) Restart() {
	w.Stop()
	w.Start()
}

// Use/Release proxy to the watcher's refcount, letting a caller hold it
// across an async callback without worrying about a concurrent Free.
func (w *Watcher) Use()     { w.ref.Use() }
func (w *Watcher) Release() { w.ref.Release() }

// submit runs fn on the loop goroutine, blocking the caller until it has
// run (bounded: the loop only ever does cheap bookkeeping here).
func (m *Manager) submit(fn func()) {
	done := make(chan struct{})
	select {
	case m.cmdCh <- func() { fn(); close(done) }:
		<-done
	case <-m.doneCh:
	}
}

func (m *Manager) register(w *Watcher) {
	m.mu.Lock()
	m.watchers[w.id] = w
	m.mu.Unlock()
	if w.kind == KindFDReadable || w.kind == KindFDWritable {
		m.poller.add(w)
	}
	if w.kind == KindSignal {
		m.poller.add(w)
	}
}

func (m *Manager) unregister(w *Watcher) {
	m.mu.Lock()
	delete(m.watchers, w.id)
	m.mu.Unlock()
	if w.kind == KindFDReadable || w.kind == KindFDWritable || w.kind == KindSignal {
		m.poller.remove(w)
	}
}

func (m *Manager) free(w *Watcher) {
	w.Stop()
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.doneCh)
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.drainAll()
			return
		case fn := <-m.cmdCh:
			fn()
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Manager) drainAll() {
	m.mu.Lock()
	ws := make([]*Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		ws = append(ws, w)
	}
	m.watchers = make(map[uint64]*Watcher)
	m.mu.Unlock()
	for _, w := range ws {
		if w.kind == KindFDReadable || w.kind == KindFDWritable || w.kind == KindSignal {
			m.poller.remove(w)
		}
	}
}

// tick runs one iteration: fire due timers, poll ready fds/signals, and
// only if nothing else fired this iteration, run idlers. This realizes the
// ordering rule of spec §5 ("idlers run only when no other watcher is
// pending").
func (m *Manager) tick() {
	fired := false

	now := time.Now()
	m.mu.Lock()
	var dueTimers []*Watcher
	for _, w := range m.watchers {
		if w.kind == KindTimer && w.started && !w.nextFire.After(now) {
			dueTimers = append(dueTimers, w)
		}
	}
	m.mu.Unlock()
	for _, w := range dueTimers {
		if w.period > 0 {
			w.nextFire = now.Add(w.period)
		} else {
			// One-shot: disarm in place; tick already runs on the loop
			// goroutine, where Stop's submit would wait on itself.
			w.started = false
			m.unregister(w)
		}
		m.fireWatcher(w)
		fired = true
	}

	ready := m.poller.poll(0)
	for _, w := range ready {
		m.mu.Lock()
		paused := m.pauseSources && w.source
		m.mu.Unlock()
		if paused {
			continue
		}
		if w.kind == KindSignal {
			w.sig.drain()
		}
		m.fireWatcher(w)
		fired = true
	}

	if !fired {
		m.mu.Lock()
		var idlers []*Watcher
		for _, w := range m.watchers {
			if w.kind == KindIdler && w.started {
				idlers = append(idlers, w)
			}
		}
		m.mu.Unlock()
		for _, w := range idlers {
			m.fireWatcher(w)
		}
	}
}

func (m *Manager) fireWatcher(w *Watcher) {
	w.Use()
	defer w.Release()
	if w.cb != nil {
		w.cb(w.opaque)
	}
}
