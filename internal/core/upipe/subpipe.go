package upipe

import "sync"

// SubManager implements the sub-pipe aggregation of spec §4.D
// (GET_SUB_MGR / ITERATE_SUB / SUB_GET_SUPER): a pipe that exposes several
// logical outputs (an avformat demux source, one sub-pipe per elementary
// stream) registers each child here so callers can enumerate them without
// the parent exposing a concrete slice type.
//
// Grounded on the teacher's server.Registry (internal/rtmp/server/registry.go),
// which tracks live child sessions under a mutex and exposes a snapshot
// iterator; we narrow "session" to "sub-pipe" and add the super-pipe
// back-link SUB_GET_SUPER requires.
type SubManager struct {
	super Pipe
	mu    sync.Mutex
	order []Pipe
}

func newSubManager(super Pipe) *SubManager {
	return &SubManager{super: super}
}

// Super returns the owning parent pipe (SUB_GET_SUPER backing).
func (m *SubManager) Super() Pipe { return m.super }

// Add registers a child sub-pipe. The parent does not take an external
// reference on behalf of the child; the caller manages sub-pipe lifetime
// explicitly per the internal/external refcount split (Design Notes §9).
func (m *SubManager) Add(p Pipe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = append(m.order, p)
}

// Remove unregisters a child sub-pipe, e.g. when it is released.
func (m *SubManager) Remove(p Pipe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.order {
		if c == p {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// Iterate returns the sub-pipe following cursor in registration order, or
// the first sub-pipe if cursor is nil, or nil once iteration is exhausted
// (ITERATE_SUB semantics: "nil cursor starts iteration, nil result ends
// it").
func (m *SubManager) Iterate(cursor Pipe) Pipe {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) == 0 {
		return nil
	}
	if cursor == nil {
		return m.order[0]
	}
	for i, c := range m.order {
		if c == cursor {
			if i+1 < len(m.order) {
				return m.order[i+1]
			}
			return nil
		}
	}
	return nil
}

// Len reports the current number of registered sub-pipes.
func (m *SubManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
