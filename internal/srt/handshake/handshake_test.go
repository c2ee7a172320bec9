package handshake

import (
	"testing"

	"github.com/alxayo/streamengine/internal/srt/wire"
)

// TestListenerInductionReply exercises spec §8 testable property 1: feed a
// caller induction packet, expect a reply with the magic code, a non-zero
// cookie, a local socket id, and type-specific 0.
func TestListenerInductionReply(t *testing.T) {
	var sent []byte
	l := NewListener(func(buf []byte) error {
		sent = buf
		return nil
	})

	callerInduction := wire.HandshakeCIF{Version: 0x00010000, Extension: uint16(wire.ExtFlagKMREQ), ISN: 500, MTU: 1500, MFW: 8192, HSType: wire.HSTypeInduction, SocketID: 777, SynCookie: 0}
	pkt := append(wire.ControlHeader{Type: wire.CtrlHandshake, DestSocketID: 0}.Encode(), callerInduction.Encode()...)

	if err := l.HandlePacket(pkt); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if sent == nil {
		t.Fatalf("expected a reply to be sent")
	}
	ch, ok := wire.ParseControlHeader(sent)
	if !ok || ch.Type != wire.CtrlHandshake {
		t.Fatalf("expected a handshake control reply")
	}
	replyCIF, err := wire.ParseHandshakeCIF(sent[wire.HeaderSize:])
	if err != nil {
		t.Fatalf("parse reply CIF: %v", err)
	}
	if replyCIF.Extension != uint16(wire.MagicCode) {
		t.Fatalf("expected magic code 0x%x, got 0x%x", wire.MagicCode, replyCIF.Extension)
	}
	if replyCIF.HSType != wire.HSTypeInduction {
		t.Fatalf("expected induction reply type")
	}
	if replyCIF.SynCookie == 0 {
		t.Fatalf("expected non-zero cookie")
	}
	if replyCIF.SocketID == 0 {
		t.Fatalf("expected a local socket id")
	}
	if ch.TypeSpecific != 0 {
		t.Fatalf("expected type-specific 0, got %d", ch.TypeSpecific)
	}
	if l.State != StateInductionSent {
		t.Fatalf("expected listener state induction_sent, got %v", l.State)
	}
}

func TestCallerListenerFullHandshakeNoEncryption(t *testing.T) {
	var listener *Handshake
	var caller *Handshake

	caller = NewCaller(func(buf []byte) error { return listener.HandlePacket(buf) })
	listener = NewListener(func(buf []byte) error { return caller.HandlePacket(buf) })

	if err := caller.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !caller.Established() || !listener.Established() {
		t.Fatalf("expected both sides established, caller=%v listener=%v", caller.State, listener.State)
	}
	if caller.RemoteSocketID != listener.SocketID {
		t.Fatalf("expected caller to learn listener's socket id")
	}
	if listener.RemoteSocketID != caller.SocketID {
		t.Fatalf("expected listener to learn caller's socket id")
	}
}

func TestCallerListenerFullHandshakeWithEncryption(t *testing.T) {
	var listener *Handshake
	var caller *Handshake

	caller = NewCaller(func(buf []byte) error { return listener.HandlePacket(buf) })
	listener = NewListener(func(buf []byte) error { return caller.HandlePacket(buf) })
	caller.Password = "s3cr3tpassword"
	listener.Password = "s3cr3tpassword"

	if err := caller.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !caller.Established() || !listener.Established() {
		t.Fatalf("expected both sides established")
	}
	if len(caller.Keys().SEK[0]) == 0 {
		t.Fatalf("expected caller to have generated an even SEK")
	}
	if len(listener.Keys().SEK[0]) != len(caller.Keys().SEK[0]) {
		t.Fatalf("expected listener to recover the same-length SEK")
	}
	for i := range caller.Keys().SEK[0] {
		if caller.Keys().SEK[0][i] != listener.Keys().SEK[0][i] {
			t.Fatalf("expected listener's unwrapped SEK to match caller's")
		}
	}
}

func TestListenerIgnoresConclusionWithBadCookie(t *testing.T) {
	l := NewListener(func([]byte) error { return nil })
	l.State = StateInductionSent
	l.SynCookie = 12345

	bad := wire.HandshakeCIF{HSType: wire.HSTypeConclusion, SynCookie: 1}
	pkt := append(wire.ControlHeader{Type: wire.CtrlHandshake}.Encode(), bad.Encode()...)
	if err := l.HandlePacket(pkt); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if l.State == StateEstablished {
		t.Fatalf("expected cookie mismatch to be ignored, not established")
	}
}
