package ubuf

import "fmt"

// MapRead returns a read-only view of a block's data, or of a named plane
// for picture/sound buffers. The returned slice must not be retained past
// the matching Unmap (enforced only by convention here, as in the C
// original — Go has no borrow checker).
func (u *Ubuf) MapRead(plane string) ([]byte, int, error) {
	return u.mapPlane(plane)
}

// MapWrite returns a writable view, requiring single ownership for every
// kind, block included (a shared buffer must be cloned before writing).
func (u *Ubuf) MapWrite(plane string) ([]byte, int, error) {
	if !u.Single() {
		return nil, 0, fmt.Errorf("ubuf: MapWrite requires single ownership")
	}
	return u.mapPlane(plane)
}

// Unmap is a no-op placeholder for symmetry with the C API and with direct
// rendering buffer hooks that must call it to release codec-side locks.
func (u *Ubuf) Unmap(plane string) {}

func (u *Ubuf) mapPlane(plane string) ([]byte, int, error) {
	switch u.Kind {
	case KindBlock:
		return u.Block.Data(), 0, nil
	case KindPicture:
		p, ok := u.Picture.Planes[plane]
		if !ok {
			return nil, 0, fmt.Errorf("ubuf: no such plane %q", plane)
		}
		return p.Data, p.Stride, nil
	case KindSound:
		p, ok := u.Sound.Planes[plane]
		if !ok {
			return nil, 0, fmt.Errorf("ubuf: no such plane %q", plane)
		}
		return p.Data, 0, nil
	}
	return nil, 0, fmt.Errorf("ubuf: unknown kind")
}
