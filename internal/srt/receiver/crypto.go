package receiver

import (
	"fmt"

	"github.com/alxayo/streamengine/internal/srt/wire"
)

// Decrypter holds the negotiated salt and SEKs so the receiver can decrypt
// an incoming data packet in place, selecting the key by the packet's kk
// bits (spec §4.K Decryption).
type Decrypter struct {
	Salt [16]byte
	SEK  [2][]byte // even, odd
}

// Decrypt decrypts payload in place for a data packet with the given
// sequence and encryption field. A clear packet (Enc==EncClear) is a
// no-op.
func (d *Decrypter) Decrypt(seq uint32, enc wire.EncType, payload []byte) error {
	if enc == wire.EncClear {
		return nil
	}
	idx := 0
	if enc == wire.EncOdd {
		idx = 1
	}
	key := d.SEK[idx]
	if key == nil {
		return fmt.Errorf("receiver: no SEK for parity %d", idx)
	}
	iv := wire.DeriveIV(d.Salt, seq)
	return wire.CryptCTR(key, iv[:], payload)
}
