package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
)

// DirectionalKeys holds the derived key material for one direction
// (encrypt or decrypt) of one encryption level: the AEAD key, the static
// 12-byte IV, and the header-protection key. The connection driver installs
// a level's keys only while that level is not yet marked ready, matching
// the "cipher_inited" idempotence invariant of §3.
type DirectionalKeys struct {
	Suite  Suite
	Key    []byte // AEAD key
	IV     [12]byte
	HPKey  []byte
	hpBlk  cipher.Block // AES-ECB block cipher for AES suites; nil for ChaCha20
	ready  bool
	aeadFn cipher.AEAD
}

// DeriveDirectional expands an AEAD key, IV and header-protection key from
// a traffic secret, per RFC 9001 §5.1 ("quic key"/"quic iv"/"quic hp").
func DeriveDirectional(suite Suite, secret []byte) (*DirectionalKeys, error) {
	key, err := ExpandLabel(suite.Hash, secret, "quic key", nil, suite.KeyLen)
	if err != nil {
		return nil, err
	}
	ivBytes, err := ExpandLabel(suite.Hash, secret, "quic iv", nil, 12)
	if err != nil {
		return nil, err
	}
	hpKey, err := ExpandLabel(suite.Hash, secret, "quic hp", nil, suite.KeyLen)
	if err != nil {
		return nil, err
	}

	dk := &DirectionalKeys{Suite: suite, Key: key, HPKey: hpKey}
	copy(dk.IV[:], ivBytes)

	if suite.AEAD != ChaCha20Poly1305 {
		blk, err := aes.NewCipher(hpKey)
		if err != nil {
			return nil, err
		}
		dk.hpBlk = blk
	}

	aeadFn, err := newAEAD(suite, key)
	if err != nil {
		return nil, err
	}
	dk.aeadFn = aeadFn
	dk.ready = true
	return dk, nil
}

func newAEAD(suite Suite, key []byte) (cipher.AEAD, error) {
	switch suite.AEAD {
	case AES128GCM, AES256GCM:
		blk, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(blk)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("keys: unknown AEAD %d", suite.AEAD)
	}
}

// Nonce builds the 12-byte AEAD nonce for packet number pn: the IV XORed
// with the big-endian packet number left-padded to 12 bytes (§4.3).
func (dk *DirectionalKeys) Nonce(pn uint64) [12]byte {
	var n [12]byte
	copy(n[:], dk.IV[:])
	for i := 0; i < 8; i++ {
		n[11-i] ^= byte(pn >> (8 * i))
	}
	return n
}

// Seal AEAD-encrypts plaintext with aad as associated data, appending the
// tag, per §4.3.
func (dk *DirectionalKeys) Seal(pn uint64, aad, plaintext []byte) []byte {
	nonce := dk.Nonce(pn)
	return dk.aeadFn.Seal(nil, nonce[:], plaintext, aad)
}

// Open AEAD-decrypts ciphertext (payload || tag). A verification failure
// is reported as a plain error; callers translate this into
// protoerr.DecryptFailed per §4.3/§7.
func (dk *DirectionalKeys) Open(pn uint64, aad, ciphertext []byte) ([]byte, error) {
	nonce := dk.Nonce(pn)
	return dk.aeadFn.Open(nil, nonce[:], ciphertext, aad)
}

// HPMask computes the 5-byte header-protection mask from a 16-byte sample
// (§4.2): one AES-ECB block for AES suites, one ChaCha20 keystream block
// for the ChaCha20 suite.
func (dk *DirectionalKeys) HPMask(sample []byte) ([5]byte, error) {
	var mask [5]byte
	if len(sample) < 16 {
		return mask, fmt.Errorf("keys: HP sample too short: %d", len(sample))
	}
	if dk.hpBlk != nil {
		var block [16]byte
		dk.hpBlk.Encrypt(block[:], sample)
		copy(mask[:], block[:5])
		return mask, nil
	}
	// ChaCha20: counter is the first 4 bytes of the sample (LE), nonce is
	// the remaining 12 bytes, per RFC 9001 §5.4.4.
	counter := uint32(sample[0]) | uint32(sample[1])<<8 | uint32(sample[2])<<16 | uint32(sample[3])<<24
	nonce := sample[4:16]
	c, err := chacha20.NewUnauthenticatedCipher(dk.HPKey, nonce)
	if err != nil {
		return mask, err
	}
	c.SetCounter(counter)
	var zero [5]byte
	c.XORKeyStream(mask[:], zero[:])
	return mask, nil
}
