package httpsrc

import (
	"crypto/tls"
	"net"
	"time"
)

// Need is the bitmask a Hook returns after a read/write step, telling the
// pipe which watcher(s) to arm before calling the hook again (spec §4.F:
// "the hook returns a bitmask ... indicating which of {transport-read,
// transport-write, data-read, data-write} it next needs").
type Need uint8

const (
	NeedTransportRead Need = 1 << iota
	NeedTransportWrite
	NeedDataRead
	NeedDataWrite
)

// Hook abstracts the transport (plain TCP or TLS) and the data framing
// (plain bytes or TLS records) behind one byte-stream interface, so the
// source pipe's phase state machine doesn't care which it's talking to.
//
// FD returns the underlying socket descriptor for upump fd-watcher
// registration, and ok=false when the hook can't expose one directly (the
// TLS hook: crypto/tls.Conn doesn't expose its underlying fd, so its I/O
// runs on a bridging goroutine instead — see tlsHook's doc comment).
type Hook interface {
	Dial(network, addr string, timeout time.Duration) error
	FD() (fd int, ok bool)
	ReadStep(buf []byte) (n int, need Need, err error)
	WriteStep(buf []byte) (n int, need Need, err error)
	Close() error
}

// plainHook is a Hook over a raw TCP connection. Its FD is registered
// directly with upump's poll(2)-based fd watchers (internal/core/upump);
// ReadStep/WriteStep still go through net.Conn once a watcher fires,
// rather than duplicating the runtime netpoller's buffering with raw
// syscalls — SyscallConn here is used purely to obtain the fd for
// readiness registration (see DESIGN.md Open Questions).
type plainHook struct {
	conn net.Conn
	raw  net.RawConn
}

func newPlainHook() *plainHook { return &plainHook{} }

func (h *plainHook) Dial(network, addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout(network, addr, timeout)
	if err != nil {
		return err
	}
	h.conn = conn
	if tc, ok := conn.(*net.TCPConn); ok {
		if raw, err := tc.SyscallConn(); err == nil {
			h.raw = raw
		}
	}
	return nil
}

func (h *plainHook) FD() (int, bool) {
	if h.raw == nil {
		return 0, false
	}
	var fd int
	if err := h.raw.Control(func(p uintptr) { fd = int(p) }); err != nil {
		return 0, false
	}
	return fd, true
}

func (h *plainHook) ReadStep(buf []byte) (int, Need, error) {
	n, err := h.conn.Read(buf)
	if err != nil {
		return n, 0, err
	}
	return n, NeedTransportRead, nil
}

func (h *plainHook) WriteStep(buf []byte) (int, Need, error) {
	n, err := h.conn.Write(buf)
	if err != nil {
		return n, 0, err
	}
	if n < len(buf) {
		return n, NeedTransportWrite, nil
	}
	return n, 0, nil
}

func (h *plainHook) Close() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}

// tlsHook wraps crypto/tls.Conn. tls.Conn does not expose its underlying
// fd, and Go's TLS record layer doesn't surface "need more transport bytes
// to decode a record" as a distinct, pollable condition — so unlike
// plainHook, a TLS connection's actual Read/Write calls happen on a
// dedicated goroutine, bridged back to the owning upump manager via a
// signal watcher (internal/core/upump.Manager.AllocSignal) rather than fd
// watchers. FD reports ok=false so the source pipe knows to use that
// bridge instead of arming fd watchers directly.
type tlsHook struct {
	conn *tls.Conn
}

func newTLSHook() *tlsHook { return &tlsHook{} }

func (h *tlsHook) Dial(network, addr string, timeout time.Duration) error {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, network, addr, &tls.Config{})
	if err != nil {
		return err
	}
	h.conn = conn
	return nil
}

func (h *tlsHook) FD() (int, bool) { return 0, false }

func (h *tlsHook) ReadStep(buf []byte) (int, Need, error) {
	n, err := h.conn.Read(buf)
	if err != nil {
		return n, 0, err
	}
	return n, NeedDataRead, nil
}

func (h *tlsHook) WriteStep(buf []byte) (int, Need, error) {
	n, err := h.conn.Write(buf)
	if err != nil {
		return n, 0, err
	}
	if n < len(buf) {
		return n, NeedDataWrite, nil
	}
	return n, 0, nil
}

func (h *tlsHook) Close() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}
