package uref

import (
	"testing"

	"github.com/alxayo/streamengine/internal/core/ubuf"
)

func TestDictEqualityReflexiveSymmetricTransitive(t *testing.T) {
	a := NewDict()
	a.SetString("def", "block.h264.")
	a.SetUnsigned("hsize", 1920)

	b := a.Dup()
	c := b.Dup()

	if !a.Equal(a) {
		t.Fatalf("reflexive failed")
	}
	if !a.Equal(b) || !b.Equal(a) {
		t.Fatalf("symmetric failed")
	}
	if !a.Equal(c) {
		t.Fatalf("transitive failed (a vs c)")
	}

	c.SetUnsigned("hsize", 1280)
	if a.Equal(c) {
		t.Fatalf("expected inequality after mutation")
	}
	// Original must be unaffected by mutating the duplicate.
	if v, _ := a.GetUnsigned("hsize"); v != 1920 {
		t.Fatalf("dup mutated original: got %d", v)
	}
}

func TestOpaqueDupIsDeep(t *testing.T) {
	a := NewDict()
	a.SetOpaque("sek", []byte{1, 2, 3})
	b := a.Dup()
	ov, _ := b.GetOpaque("sek")
	ov[0] = 0xFF
	orig, _ := a.GetOpaque("sek")
	if orig[0] == 0xFF {
		t.Fatalf("opaque dup shares backing array")
	}
}

func TestTimestampsUnsetByDefault(t *testing.T) {
	u := New()
	if _, ok := u.Dts(DomainProgram); ok {
		t.Fatalf("expected unset dts")
	}
	u.SetDts(DomainProgram, 1000)
	v, ok := u.Dts(DomainProgram)
	if !ok || v != 1000 {
		t.Fatalf("expected dts 1000, got %d ok=%v", v, ok)
	}
	// Other domains remain unset.
	if _, ok := u.Dts(DomainSystem); ok {
		t.Fatalf("expected system domain still unset")
	}
}

func TestRebaseDatesShiftsOnlySetFields(t *testing.T) {
	u := New()
	u.SetDts(DomainOrig, 500)
	u.RebaseDates(27000)
	v, ok := u.Dts(DomainOrig)
	if !ok || v != 27500 {
		t.Fatalf("expected rebase to 27500, got %d", v)
	}
	if _, ok := u.Pts(DomainOrig); ok {
		t.Fatalf("unset pts should remain unset after rebase")
	}
}

func TestDupSharesUbufByDefault(t *testing.T) {
	mgr := ubuf.NewBlockManager(nil, 0, 0, 0, 0)
	b, _ := mgr.Allocate(8)
	u := NewData(b)
	dup := u.Dup()
	if b.Single() {
		t.Fatalf("expected shared ownership after uref Dup")
	}
	_ = dup
}
