package flowdef

import (
	"testing"

	"github.com/alxayo/streamengine/internal/core/uref"
)

func TestEqualityReflexiveSymmetricTransitive(t *testing.T) {
	a := New("block.h264.")
	SetPictureAttrs(a, 1920, 1080, 25, 1)
	b := a.Dup()
	c := b.Dup()

	if !Equal(a, a) {
		t.Fatalf("reflexive")
	}
	if !Equal(a, b) || !Equal(b, a) {
		t.Fatalf("symmetric")
	}
	if !Equal(a, c) {
		t.Fatalf("transitive")
	}
}

func TestAmendProducesDistinctButRelatedDef(t *testing.T) {
	a := New("block.h264.")
	SetPictureAttrs(a, 1920, 1080, 25, 1)
	b := Amend(a, func(f *uref.Uref) {
		SetPictureAttrs(f, 1280, 720, 25, 1)
	})
	if Equal(a, b) {
		t.Fatalf("expected amended flow def to differ")
	}
	hsize, vsize := PictureSize(b)
	if hsize != 1280 || vsize != 720 {
		t.Fatalf("expected amended size 1280x720, got %dx%d", hsize, vsize)
	}
	origH, origV := PictureSize(a)
	if origH != 1920 || origV != 1080 {
		t.Fatalf("amend must not mutate original, got %dx%d", origH, origV)
	}
}

func TestMatchesPrefix(t *testing.T) {
	f := New("block.h264.")
	if !MatchesPrefix(f, "block") {
		t.Fatalf("expected block prefix match")
	}
	if MatchesPrefix(f, "pic") {
		t.Fatalf("unexpected pic prefix match")
	}
}
