package upipe

import (
	"sync"

	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/core/uref"
)

// InputHelper implements the input-side flow control of spec §4.D: an
// ordered hold queue bounded by MaxUrefs, plus the set of upstream pump
// watchers (typically fd-readable source watchers) to pause once the queue
// is full and resume once it drains below the cap again.
//
// Grounded on the teacher's conn.Session backpressure (internal/rtmp/conn/
// conn.go uses a bounded channel for the write queue and stops reading when
// it's full); here the bound is an explicit slice length rather than a
// channel capacity so the helper can report queue length to SET_OPTION/
// diagnostics callers, and the "stop reading" action is generalized from
// one net.Conn to an arbitrary set of upump watchers.
type InputHelper struct {
	mu       sync.Mutex
	held     []*uref.Uref
	maxUrefs int
	blocked  []*upump.Watcher
	// process is invoked for each uref as it is admitted (either
	// immediately, when the queue was empty, or during Drain/Flush).
	process func(*uref.Uref) error
}

// NewInputHelper builds a helper that invokes process for each admitted
// uref and blocks source pumps once more than maxUrefs are held. maxUrefs
// <= 0 means unbounded (no pump blocking).
func NewInputHelper(maxUrefs int, process func(*uref.Uref) error) *InputHelper {
	return &InputHelper{maxUrefs: maxUrefs, process: process}
}

// WatchPump registers w as a source pump this helper may Stop when its hold
// queue is full and Start again once it drains, per spec §4.D "blocked
// pump tracking".
func (h *InputHelper) WatchPump(w *upump.Watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocked = append(h.blocked, w)
}

// Hold enqueues u without processing it, used when the consumer side is
// itself blocked (e.g. output rejected the flow def) and incoming urefs
// must wait rather than be dropped.
func (h *InputHelper) Hold(u *uref.Uref) {
	h.mu.Lock()
	h.held = append(h.held, u)
	full := h.maxUrefs > 0 && len(h.held) > h.maxUrefs
	h.mu.Unlock()
	if full {
		h.pausePumps()
	}
}

// Submit admits u: if the hold queue is empty it is processed immediately;
// otherwise it joins the queue (preserving order) and Drain must be called
// once the blockage clears.
func (h *InputHelper) Submit(u *uref.Uref) error {
	h.mu.Lock()
	if len(h.held) > 0 {
		h.held = append(h.held, u)
		full := h.maxUrefs > 0 && len(h.held) > h.maxUrefs
		h.mu.Unlock()
		if full {
			h.pausePumps()
		}
		return nil
	}
	h.mu.Unlock()
	return h.process(u)
}

// Drain processes held urefs in FIFO order until the queue empties or
// process returns an error (in which case the remaining urefs, including
// the failing one, stay queued for the next Drain). Resumes paused pumps
// once the queue falls at or below maxUrefs.
func (h *InputHelper) Drain() error {
	for {
		h.mu.Lock()
		if len(h.held) == 0 {
			h.mu.Unlock()
			return nil
		}
		u := h.held[0]
		h.mu.Unlock()

		if err := h.process(u); err != nil {
			return err
		}

		h.mu.Lock()
		h.held = h.held[1:]
		belowCap := h.maxUrefs <= 0 || len(h.held) <= h.maxUrefs
		h.mu.Unlock()
		if belowCap {
			h.resumePumps()
		}
	}
}

// Flush discards every held uref without processing it (spec §4.D: used on
// a downstream-rejected flow def or an explicit reset), freeing each one
// and resuming any paused pumps.
func (h *InputHelper) Flush() {
	h.mu.Lock()
	held := h.held
	h.held = nil
	h.mu.Unlock()
	for _, u := range held {
		u.Free()
	}
	h.resumePumps()
}

// Len reports the number of currently held urefs.
func (h *InputHelper) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.held)
}

func (h *InputHelper) pausePumps() {
	h.mu.Lock()
	pumps := append([]*upump.Watcher(nil), h.blocked...)
	h.mu.Unlock()
	for _, w := range pumps {
		w.Stop()
	}
}

func (h *InputHelper) resumePumps() {
	h.mu.Lock()
	pumps := append([]*upump.Watcher(nil), h.blocked...)
	h.mu.Unlock()
	for _, w := range pumps {
		w.Start()
	}
}
