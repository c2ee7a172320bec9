package wire

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// DeriveKEK derives the key-encrypting key from a password and the salt
// carried in the handshake's keying material, per spec §6: HMAC-SHA1,
// 2048 iterations, PBKDF2 salt = the low 8 bytes of the 16-byte handshake
// salt, output length = the declared key length (16 or 32).
//
// Grounded on the teacher's AES-CTR/HMAC-adjacent dependency posture: no
// pack repo wraps PBKDF2, so this reaches directly for
// golang.org/x/crypto/pbkdf2, the same family (golang.org/x/crypto) the
// teacher already depends on elsewhere in the pack for non-stdlib crypto
// primitives.
func DeriveKEK(password string, salt [16]byte, keyLen int) []byte {
	return pbkdf2.Key([]byte(password), salt[8:16], 2048, keyLen, sha1.New)
}

// WrapKey performs the AES key-wrap (RFC 3394) of a SEK under the KEK, as
// used by the handshake's KMREQ/KMRSP to transport session keys. wrapLen is
// always len(sek)+8.
func WrapKey(kek, sek []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	return aesKeyWrap(block, sek), nil
}

// UnwrapKey reverses WrapKey.
func UnwrapKey(kek, wrapped []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	return aesKeyUnwrap(block, wrapped)
}

var kekIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// aesKeyWrap implements RFC 3394 key wrap with the standard default IV.
func aesKeyWrap(block cipher.Block, plaintext []byte) []byte {
	n := len(plaintext) / 8
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], plaintext[i*8:(i+1)*8])
	}
	var a [8]byte
	copy(a[:], kekIV[:])

	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[0:8], a[:])
			copy(buf[8:16], r[i-1][:])
			block.Encrypt(buf, buf)
			copy(a[:], buf[0:8])
			t := uint64(n*j + i)
			var tb [8]byte
			binary.BigEndian.PutUint64(tb[:], t)
			for k := range a {
				a[k] ^= tb[k]
			}
			copy(r[i-1][:], buf[8:16])
		}
	}
	out := make([]byte, 8+len(plaintext))
	copy(out[0:8], a[:])
	for i := 0; i < n; i++ {
		copy(out[8+i*8:8+(i+1)*8], r[i][:])
	}
	return out
}

// aesKeyUnwrap implements the inverse of aesKeyWrap, returning an error if
// the recovered integrity check value does not match kekIV.
func aesKeyUnwrap(block cipher.Block, wrapped []byte) ([]byte, error) {
	if len(wrapped) < 16 || len(wrapped)%8 != 0 {
		return nil, errors.New("wire: invalid wrapped key length")
	}
	n := len(wrapped)/8 - 1
	var a [8]byte
	copy(a[:], wrapped[0:8])
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], wrapped[8+i*8:8+(i+1)*8])
	}

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			var tb [8]byte
			binary.BigEndian.PutUint64(tb[:], t)
			var ax [8]byte
			copy(ax[:], a[:])
			for k := range ax {
				ax[k] ^= tb[k]
			}
			copy(buf[0:8], ax[:])
			copy(buf[8:16], r[i-1][:])
			block.Decrypt(buf, buf)
			copy(a[:], buf[0:8])
			copy(r[i-1][:], buf[8:16])
		}
	}
	for i := range a {
		if a[i] != kekIV[i] {
			return nil, errors.New("wire: key unwrap integrity check failed")
		}
	}
	out := make([]byte, n*8)
	for i := 0; i < n; i++ {
		copy(out[i*8:(i+1)*8], r[i][:])
	}
	return out, nil
}

// DeriveIV computes the AES-CTR IV for a data packet with the given
// sequence number, per spec §4.K/§6: the low 14 bytes of salt form the
// base, XORed at bytes 10..13 with the 31-bit sequence number in network
// byte order.
func DeriveIV(salt [16]byte, seq uint32) [16]byte {
	var iv [16]byte
	copy(iv[:14], salt[:14])
	seq &= 0x7FFFFFFF
	var seqBytes [4]byte
	binary.BigEndian.PutUint32(seqBytes[:], seq)
	for i := 0; i < 4; i++ {
		iv[10+i] ^= seqBytes[i]
	}
	return iv
}

// CryptCTR XOR-encrypts/decrypts data in place using AES-CTR with the given
// key and IV (symmetric: the same call both encrypts and decrypts).
func CryptCTR(key, iv []byte, data []byte) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	stream := cipher.NewCTR(block, iv)
	stream.XORKeyStream(data, data)
	return nil
}
