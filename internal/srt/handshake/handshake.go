// Package handshake implements the SRT caller/listener handshake state
// machine of spec §4.J: induction/conclusion exchange, HSREQ/KMREQ
// negotiation, rekey, keepalive, and handshake timeout.
//
// Grounded on the teacher's RTMP handshake FSM
// (internal/rtmp/handshake/{client,server}.go): a small struct tracking
// protocol state plus explicit Accept*/Set*/Complete transition methods,
// generalized here from RTMP's fixed three-message blocking exchange to
// SRT's datagram-driven, retry-on-timer induction/conclusion exchange. The
// transport itself (actual UDP I/O) is injected as a Send callback, mirrors
// the teacher's handshake package taking a net.Conn rather than owning
// socket creation.
package handshake

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/alxayo/streamengine/internal/core/upump"
	"github.com/alxayo/streamengine/internal/srt/wire"
)

// State is the handshake progress, shared by both caller and listener
// though only a subset of values apply to each (spec §4.J state diagrams).
type State int

const (
	StateIdle State = iota
	StateInductionSent
	StateConclusionSent
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInductionSent:
		return "induction_sent"
	case StateConclusionSent:
		return "conclusion_sent"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Mode distinguishes which side of the exchange this Handshake drives.
type Mode int

const (
	ModeCaller Mode = iota
	ModeListener
)

// SRTVersion is the version this implementation advertises (spec §4.J:
// "made up version" 2.2.2, matching the teacher's own handshake
// advertising a fixed, hand-picked protocol version rather than
// autodetecting one).
var SRTVersion = wire.EncodeSRTVersion(2, 2, 2)

// Keys carries the negotiated encryption material once a handshake
// finalizes with encryption enabled.
type Keys struct {
	Salt   [16]byte
	SEK    [2][]byte // even, odd
	KeyLen int
}

// Handshake drives one SRT handshake exchange. Send is invoked with each
// outgoing datagram; the caller is responsible for actually writing it to
// the socket (transport is out of scope for this package, per spec §1).
type Handshake struct {
	Mode  Mode
	State State

	// ConnID is a process-local connection identifier for log/trace
	// correlation across the exchange's several packets; it never appears
	// on the wire (the wire-level peer identifier is SocketID, a fixed
	// 32-bit field the SRT protocol itself defines).
	ConnID string

	Password string // empty disables encryption

	SocketID       uint32
	RemoteSocketID uint32
	SynCookie      uint32
	ISN            uint32
	MTU            uint32
	MFW            uint32

	StreamID string

	keys        Keys
	established bool

	Send func(buf []byte) error

	// RetransmitTimer/Timeout/Keepalive watchers, allocated lazily once an
	// upump.Manager is attached (ATTACH_UPUMP_MGR equivalent); nil until
	// then, matching the teacher's lazy-allocate-on-first-use pattern for
	// manager-dependent resources.
	mgr             *upump.Manager
	retransmitTimer *upump.Watcher
	timeoutTimer    *upump.Watcher
	keepaliveTimer  *upump.Watcher
	kmreqTimer      *upump.Watcher

	onEstablished func(*Handshake)
	onRejected    func(reason string)
}

// NewCaller builds a Handshake that will drive the caller side of the
// exchange once Start is called.
func NewCaller(send func([]byte) error) *Handshake {
	return &Handshake{Mode: ModeCaller, State: StateIdle, Send: send, ConnID: uuid.NewString(), SocketID: randomUint32(), ISN: randomUint32() & 0x7FFFFFFF, MTU: 1500, MFW: 8192}
}

// NewListener builds a Handshake that waits for an incoming induction.
func NewListener(send func([]byte) error) *Handshake {
	return &Handshake{Mode: ModeListener, State: StateIdle, Send: send, ConnID: uuid.NewString(), SocketID: randomUint32(), ISN: randomUint32() & 0x7FFFFFFF, MTU: 1500, MFW: 8192}
}

// OnEstablished registers a callback fired exactly once when the handshake
// completes.
func (h *Handshake) OnEstablished(cb func(*Handshake)) { h.onEstablished = cb }

// OnRejected registers a callback fired if the peer rejects the handshake.
func (h *Handshake) OnRejected(cb func(reason string)) { h.onRejected = cb }

// Keys returns the negotiated encryption material, valid once Established()
// is true and Password was non-empty.
func (h *Handshake) Keys() Keys { return h.keys }

// Established reports whether the exchange has completed.
func (h *Handshake) Established() bool { return h.State == StateEstablished }

func randomUint32() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

func copyRandom(dst []byte) {
	_, _ = rand.Read(dst)
}

var errBadPacket = errors.New("handshake: malformed packet")

// HandlePacket dispatches an incoming datagram to the caller- or
// listener-side processing per h.Mode.
func (h *Handshake) HandlePacket(buf []byte) error {
	ch, ok := wire.ParseControlHeader(buf)
	if !ok || ch.Type != wire.CtrlHandshake {
		return nil
	}
	cif, err := wire.ParseHandshakeCIF(buf[wire.HeaderSize:])
	if err != nil {
		return fmt.Errorf("handshake: %w", errBadPacket)
	}
	switch h.Mode {
	case ModeListener:
		return h.handleListenerPacket(ch, cif, buf[wire.HeaderSize+wire.HandshakeCIFSize:])
	default:
		return h.handleCallerPacket(ch, cif, buf[wire.HeaderSize+wire.HandshakeCIFSize:])
	}
}

func (h *Handshake) complete() {
	if h.established {
		return
	}
	h.established = true
	h.State = StateEstablished
	h.stopRetransmit()
	if h.onEstablished != nil {
		h.onEstablished(h)
	}
}
