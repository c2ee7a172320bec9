package handshake

import "github.com/alxayo/streamengine/internal/srt/wire"

// Start sends the initial induction request (caller side). The 250 ms
// timer armed by AttachUpumpMgr resends the induction while the state is
// still induction_sent; the conclusion is sent once and not resent.
func (h *Handshake) Start() error {
	if h.Mode != ModeCaller {
		return nil
	}
	h.State = StateInductionSent
	return h.sendInduction()
}

func (h *Handshake) sendInduction() error {
	cif := wire.HandshakeCIF{
		Version: 4, // legacy version triggers the listener's induction path
		HSType:   wire.HSTypeInduction,
		ISN:      h.ISN,
		MTU:      h.MTU,
		MFW:      h.MFW,
		SocketID: h.SocketID,
	}
	return h.sendHandshake(0, cif, nil)
}

func (h *Handshake) handleCallerPacket(ch wire.ControlHeader, cif wire.HandshakeCIF, ext []byte) error {
	switch {
	case cif.HSType == wire.HSTypeInduction && h.State == StateInductionSent:
		return h.callerInductionReply(cif)
	case cif.HSType == wire.HSTypeConclusion && h.State == StateConclusionSent:
		return h.callerConclusionReply(cif, ext)
	case cif.HSType == wire.HSTypeReject:
		h.State = StateClosed
		if h.onRejected != nil {
			h.onRejected("peer rejected handshake")
		}
	}
	return nil
}

// callerInductionReply echoes the listener's cookie/version/MTU/ISN and
// sends a conclusion carrying HSREQ, and KMREQ if encryption is enabled
// (spec §4.J "Caller induction reply").
func (h *Handshake) callerInductionReply(cif wire.HandshakeCIF) error {
	h.RemoteSocketID = cif.SocketID
	h.SynCookie = cif.SynCookie
	h.State = StateConclusionSent

	var extFlags uint32 = wire.ExtFlagHSREQ
	var payload []byte
	payload = append(payload, buildExtension(wire.ExtTypeHSREQ, wire.HSREQ{
		SRTVersion: SRTVersion, Flags: 0, ReceiverTSBPDDelay: 120, SenderTSBPDDelay: 120,
	}.Encode())...)

	if h.Password != "" {
		if h.keys.SEK[0] == nil {
			h.generateSEK(0, 16)
		}
		rsp, err := h.buildKMResponse()
		if err == nil {
			extFlags |= wire.ExtFlagKMREQ
			payload = append(payload, buildExtension(wire.ExtTypeKMREQ, rsp)...)
		}
	}

	concl := wire.HandshakeCIF{
		Version:   0x00010000,
		Extension: uint16(extFlags),
		ISN:       h.ISN,
		MTU:       h.MTU,
		MFW:       h.MFW,
		HSType:    wire.HSTypeConclusion,
		SocketID:  h.SocketID,
		SynCookie: h.SynCookie,
	}
	return h.sendHandshake(0, concl, payload)
}

func (h *Handshake) callerConclusionReply(cif wire.HandshakeCIF, ext []byte) error {
	_, km, _ := parseExtensions(ext)
	if km != nil && h.Password != "" {
		if err := h.acceptKeyMaterial(*km); err != nil {
			if h.onRejected != nil {
				h.onRejected("key material: " + err.Error())
			}
			return nil
		}
	}
	h.complete()
	return nil
}
