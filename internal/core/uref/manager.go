package uref

import "github.com/alxayo/streamengine/internal/core/ubuf"

// Manager allocates carrier records with pre-sized attribute storage. The
// "pre-sized" aspect is modeled as a capacity hint passed to the underlying
// map allocation, which avoids repeated rehashing for urefs that carry a
// known, larger-than-default attribute set (flow definitions in particular
// tend to carry a dozen or more keys).
type Manager struct {
	attrCapHint int
}

// NewManager creates a uref Manager. attrCapHint sizes the initial attribute
// map capacity for every uref it allocates; 0 uses Go's default map growth.
func NewManager(attrCapHint int) *Manager {
	return &Manager{attrCapHint: attrCapHint}
}

// Alloc allocates a control uref (no ubuf).
func (m *Manager) Alloc() *Uref {
	u := New()
	if m.attrCapHint > 0 {
		u.Dict.m = make(map[string]Value, m.attrCapHint)
	}
	return u
}

// AllocData allocates a data uref owning b.
func (m *Manager) AllocData(b *ubuf.Ubuf) *Uref {
	u := NewData(b)
	if m.attrCapHint > 0 {
		u.Dict.m = make(map[string]Value, m.attrCapHint)
	}
	return u
}
