package ubuf

import "testing"

func TestBlockAllocateAndMap(t *testing.T) {
	mgr := NewBlockManager(nil, 16, 16, 0, 0)
	u, err := mgr.Allocate(100)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	data, _, err := u.MapWrite("")
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(data) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(data))
	}
	for i := range data {
		data[i] = byte(i)
	}
	u.Unmap("")
}

func TestBlockResizeZeroCopyWithinHeadroom(t *testing.T) {
	mgr := NewBlockManager(nil, 32, 32, 0, 0)
	u, _ := mgr.Allocate(64)
	data, _, _ := u.MapWrite("")
	for i := range data {
		data[i] = 0xAA
	}
	if err := mgr.Resize(u, -8, 72); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if u.Block.Size != 72 {
		t.Fatalf("expected size 72, got %d", u.Block.Size)
	}
}

func TestBlockResizeNotSingleOwnerCopies(t *testing.T) {
	mgr := NewBlockManager(nil, 16, 16, 0, 0)
	u, _ := mgr.Allocate(32)
	data, _, _ := u.MapWrite("")
	for i := range data {
		data[i] = byte(i + 1)
	}
	shared := u.Dup() // bump refcount -> no longer single
	if u.Single() {
		t.Fatalf("expected shared buffer to not be single")
	}
	if err := mgr.Resize(u, 0, 48); err != nil {
		t.Fatalf("resize: %v", err)
	}
	got := u.Block.Data()
	for i := 0; i < 32; i++ {
		if got[i] != byte(i+1) {
			t.Fatalf("byte %d mismatch after copying resize: got %d", i, got[i])
		}
	}
	shared.Free()
	u.Free()
}

func TestPictureAllocateSubsampledPlanes(t *testing.T) {
	mgr := NewPictureManager(nil)
	mgr.RegisterPlane(PlaneDef{Name: "y8", HSub: 1, VSub: 1})
	mgr.RegisterPlane(PlaneDef{Name: "u8", HSub: 2, VSub: 2})
	mgr.RegisterPlane(PlaneDef{Name: "v8", HSub: 2, VSub: 2})
	u, err := mgr.AllocatePicture(16, 8)
	if err != nil {
		t.Fatalf("allocate picture: %v", err)
	}
	y, _, _ := u.MapRead("y8")
	if len(y) != 16*8 {
		t.Fatalf("y plane size mismatch: %d", len(y))
	}
	uc, _, _ := u.MapRead("u8")
	if len(uc) != 8*4 {
		t.Fatalf("u plane size mismatch: %d", len(uc))
	}
	planes := IteratePlanes(u)
	if len(planes) != 3 {
		t.Fatalf("expected 3 planes, got %d", len(planes))
	}
}

func TestSingleOwnerTransitions(t *testing.T) {
	mgr := NewBlockManager(nil, 0, 0, 0, 0)
	u, _ := mgr.Allocate(8)
	if !u.Single() {
		t.Fatalf("expected single right after allocate")
	}
	dup := u.Dup()
	if u.Single() {
		t.Fatalf("expected not single after Dup")
	}
	dup.Free()
	if !u.Single() {
		t.Fatalf("expected single again after dup freed")
	}
	u.Free()
}

func TestCloneIsIndependent(t *testing.T) {
	mgr := NewBlockManager(nil, 0, 0, 0, 0)
	u, _ := mgr.Allocate(4)
	data, _, _ := u.MapWrite("")
	copy(data, []byte{1, 2, 3, 4})
	clone, err := u.Clone()
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	cd, _, _ := clone.MapWrite("")
	cd[0] = 0xFF
	orig, _, _ := u.MapRead("")
	if orig[0] == 0xFF {
		t.Fatalf("clone mutation leaked into original")
	}
}

func TestAppendChainsBlocks(t *testing.T) {
	mgr := NewBlockManager(nil, 0, 0, 0, 0)
	a, _ := mgr.Allocate(4)
	b, _ := mgr.Allocate(4)
	if err := mgr.Append(a, b); err != nil {
		t.Fatalf("append: %v", err)
	}
	if a.Block.Next != b.Block {
		t.Fatalf("expected a to chain to b")
	}
}
