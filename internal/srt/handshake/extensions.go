package handshake

import (
	"errors"

	"github.com/alxayo/streamengine/internal/srt/wire"
)

// parseExtensions walks the extension blocks following a handshake CIF,
// returning whichever of HSREQ/HSRSP and KMREQ/KMRSP are present (spec
// §4.J: "parse HSREQ ... and optional KMREQ").
func parseExtensions(buf []byte) (hsreq *wire.HSREQ, km *wire.KeyMaterial, err error) {
	off := 0
	for off+4 <= len(buf) {
		eh, perr := wire.ParseExtensionHeader(buf[off:])
		if perr != nil {
			return hsreq, km, perr
		}
		off += 4
		blockLen := int(eh.Len) * 4
		if off+blockLen > len(buf) {
			return hsreq, km, errors.New("handshake: extension block overruns packet")
		}
		block := buf[off : off+blockLen]
		switch eh.Type {
		case wire.ExtTypeHSREQ, wire.ExtTypeHSRSP:
			h, perr := wire.ParseHSREQ(block)
			if perr == nil {
				hsreq = &h
			}
		case wire.ExtTypeKMREQ, wire.ExtTypeKMRSP:
			k, perr := wire.ParseKeyMaterial(block)
			if perr == nil {
				km = &k
			}
		}
		off += blockLen
	}
	return hsreq, km, nil
}

// buildExtension wraps a payload with its 4-byte extension header, the
// length expressed in 32-bit words as the wire format requires.
func buildExtension(typ uint16, payload []byte) []byte {
	h := wire.ExtensionHeader{Type: typ, Len: uint16(len(payload) / 4)}
	return append(h.Encode(), payload...)
}

// acceptKeyMaterial derives the key-encrypting key from h.Password and the
// peer's salt, unwraps the SEK(s) carried in km, and stores them (spec
// §4.J conclusion transition).
func (h *Handshake) acceptKeyMaterial(km wire.KeyMaterial) error {
	if h.Password == "" {
		return errors.New("encryption requested but no password configured")
	}
	kek := wire.DeriveKEK(h.Password, km.Salt, int(km.KeyLen))
	wrapLen := int(km.KeyLen) + 8
	n := len(km.Wrapped) / wrapLen
	if n == 0 {
		return errors.New("malformed keying material: no wrapped keys")
	}
	h.keys.Salt = km.Salt
	h.keys.KeyLen = int(km.KeyLen)

	idx := 0
	if km.KK&0x1 != 0 {
		sek, err := wire.UnwrapKey(kek, km.Wrapped[idx*wrapLen:(idx+1)*wrapLen])
		if err != nil {
			return err
		}
		h.keys.SEK[0] = sek
		idx++
	}
	if km.KK&0x2 != 0 && idx < n {
		sek, err := wire.UnwrapKey(kek, km.Wrapped[idx*wrapLen:(idx+1)*wrapLen])
		if err != nil {
			return err
		}
		h.keys.SEK[1] = sek
	}
	return nil
}

// buildKMResponse re-derives the KEK and re-wraps the negotiated SEK(s) for
// the KMRSP extension, confirming receipt.
func (h *Handshake) buildKMResponse() ([]byte, error) {
	kek := wire.DeriveKEK(h.Password, h.keys.Salt, h.keys.KeyLen)
	kk := uint8(0)
	var wrapped []byte
	if h.keys.SEK[0] != nil {
		w, err := wire.WrapKey(kek, h.keys.SEK[0])
		if err != nil {
			return nil, err
		}
		wrapped = append(wrapped, w...)
		kk |= 0x1
	}
	if h.keys.SEK[1] != nil {
		w, err := wire.WrapKey(kek, h.keys.SEK[1])
		if err != nil {
			return nil, err
		}
		wrapped = append(wrapped, w...)
		kk |= 0x2
	}
	km := wire.KeyMaterial{Cipher: wire.KMCipherAES, KeyLen: uint8(h.keys.KeyLen), KK: kk, Salt: h.keys.Salt, Wrapped: wrapped}
	return km.Encode(), nil
}

// generateSEK produces a SEK of the given parity (plus a fresh salt, if none
// is set yet) for the caller side to offer in its KMREQ, used both on
// initial handshake and on rekey
// (spec §4.J "Rekey: ... generate a new SEK for the other parity").
func (h *Handshake) generateSEK(parity int, keyLen int) {
	if h.keys.Salt == ([16]byte{}) {
		var salt [16]byte
		copyRandom(salt[:])
		h.keys.Salt = salt
		h.keys.KeyLen = keyLen
	}
	sek := make([]byte, keyLen)
	copyRandom(sek)
	h.keys.SEK[parity] = sek
}
