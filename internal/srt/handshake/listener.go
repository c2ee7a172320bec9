package handshake

import (
	"github.com/alxayo/streamengine/internal/srt/wire"
)

func (h *Handshake) handleListenerPacket(ch wire.ControlHeader, cif wire.HandshakeCIF, ext []byte) error {
	switch cif.HSType {
	case wire.HSTypeInduction:
		return h.listenerInduction(ch, cif)
	case wire.HSTypeConclusion:
		return h.listenerConclusion(ch, cif, ext)
	default:
		return nil
	}
}

// listenerInduction replies to a caller's induction request: assign a
// cookie and local socket id, echo SRT_MAGIC_CODE in the extension field
// (spec §4.J, §8 testable property 1).
func (h *Handshake) listenerInduction(ch wire.ControlHeader, cif wire.HandshakeCIF) error {
	if h.State != StateIdle {
		return nil
	}
	h.RemoteSocketID = cif.SocketID
	h.SynCookie = randomUint32()

	reply := wire.HandshakeCIF{
		Version:   0x00010000,
		Extension: uint16(wire.MagicCode),
		ISN:       h.ISN,
		MTU:       h.MTU,
		MFW:       h.MFW,
		HSType:    wire.HSTypeInduction,
		SocketID:  h.SocketID,
		SynCookie: h.SynCookie,
	}
	h.State = StateInductionSent
	return h.sendHandshake(0, reply, nil)
}

// listenerConclusion validates the cookie echo, parses HSREQ/KMREQ
// extensions, derives encryption keys if present, and replies with the
// matching extensions to finalize (spec §4.J).
func (h *Handshake) listenerConclusion(ch wire.ControlHeader, cif wire.HandshakeCIF, ext []byte) error {
	if h.State != StateInductionSent && h.State != StateIdle {
		return nil
	}
	if cif.SynCookie != h.SynCookie {
		return nil // cookie mismatch: ignore, likely a stale/spoofed retry
	}

	hsreq, km, _ := parseExtensions(ext)
	if hsreq != nil {
		h.ISN = cif.ISN
	}
	if km != nil {
		if err := h.acceptKeyMaterial(*km); err != nil {
			if h.onRejected != nil {
				h.onRejected("key material: " + err.Error())
			}
			return h.sendReject()
		}
	}

	replyExt := uint16(0)
	var extFlags uint32
	if hsreq != nil {
		extFlags |= wire.ExtFlagHSREQ
	}
	if km != nil {
		extFlags |= wire.ExtFlagKMREQ
	}
	_ = replyExt

	reply := wire.HandshakeCIF{
		Version:   0x00010000,
		Extension: uint16(extFlags),
		ISN:       h.ISN,
		MTU:       h.MTU,
		MFW:       h.MFW,
		HSType:    wire.HSTypeConclusion,
		SocketID:  h.SocketID,
		SynCookie: h.SynCookie,
	}

	var payload []byte
	if hsreq != nil {
		payload = append(payload, buildExtension(wire.ExtTypeHSRSP, wire.HSREQ{
			SRTVersion: SRTVersion, Flags: hsreq.Flags,
			ReceiverTSBPDDelay: hsreq.ReceiverTSBPDDelay, SenderTSBPDDelay: hsreq.SenderTSBPDDelay,
		}.Encode())...)
	}
	if km != nil {
		rsp, err := h.buildKMResponse()
		if err == nil {
			payload = append(payload, buildExtension(wire.ExtTypeKMRSP, rsp)...)
		}
	}

	if err := h.sendHandshake(0, reply, payload); err != nil {
		return err
	}
	h.complete()
	return nil
}

func (h *Handshake) sendReject() error {
	reply := wire.HandshakeCIF{HSType: wire.HSTypeReject, SocketID: h.SocketID}
	h.State = StateClosed
	return h.sendHandshake(0, reply, nil)
}

func (h *Handshake) sendHandshake(timestamp uint32, cif wire.HandshakeCIF, ext []byte) error {
	buf := append(wire.ControlHeader{Type: wire.CtrlHandshake, Timestamp: timestamp, DestSocketID: h.RemoteSocketID}.Encode(), cif.Encode()...)
	buf = append(buf, ext...)
	if h.Send == nil {
		return nil
	}
	return h.Send(buf)
}
