package satp

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"sync"

	"github.com/pion/logging"
)

// SaltLen is the fixed master/session salt length, spec.md §3: 14 bytes.
const SaltLen = 14

// KeyDeriver is the interface satisfied by both the real AES-CTR
// construction and the NullKeyDerivation debug stand-in, spec.md §4.2.
type KeyDeriver interface {
	// Generate produces n bytes of session key material for the given
	// direction, label (pre role/direction conversion), and sequence
	// number.
	Generate(dir Direction, label Label, seqNr uint32, n int) ([]byte, error)
}

// KDState is the stateful, per-connection AES-CTR key derivation
// function, spec.md §4.2. Construction:
//
//	counter = (master_salt ∥ 0x0000) XOR label_block
//
// where label_block is 16 bytes of zero except the 4-byte label at
// bytes 8:12 and the 4-byte sequence number at bytes 12:16, so the
// XOR only ever touches bytes 8:16: the salt's last 6 bytes and the
// two zero bytes after it, which end up holding the low two bytes of
// the sequence number. AES (keyed with
// master_key) encrypts that counter block; the ciphertext (repeated
// via CTR-mode successor blocks if more bytes are requested) is the
// derived key material.
//
// Grounded on original_source/src/keyDerivation.cpp
// (AesIcmKeyDerivation::calcCtr/generate) and the teacher's own
// generateSessionKey/generateSessionSalt AES-CTR-over-counter-block
// construction in srtp.go.
type KDState struct {
	mu sync.RWMutex

	role       Role
	masterSalt []byte
	block      cipher.Block

	log logging.LeveledLogger
}

// NewKDState constructs a KDState for the given role from a master
// key (16/24/32 bytes) and master salt (exactly SaltLen bytes).
// CryptoInit errors (spec.md §7) are fatal to construction.
func NewKDState(masterKey, masterSalt []byte, role Role, lf logging.LoggerFactory) (*KDState, error) {
	if len(masterSalt) != SaltLen {
		return nil, wrapf(ErrCryptoInit, "kd: master salt must be %d bytes, got %d", SaltLen, len(masterSalt))
	}
	switch len(masterKey) {
	case 16, 24, 32:
	default:
		return nil, wrapf(ErrCryptoInit, "kd: master key must be 16/24/32 bytes, got %d", len(masterKey))
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, wrapf(ErrCryptoInit, "kd: aes.NewCipher: %v", err)
	}

	var log logging.LeveledLogger
	if lf != nil {
		log = lf.NewLogger("satp.kd")
	} else {
		log = logging.NewDefaultLoggerFactory().NewLogger("satp.kd")
	}

	saltCopy := make([]byte, SaltLen)
	copy(saltCopy, masterSalt)

	return &KDState{role: role, masterSalt: saltCopy, block: block, log: log}, nil
}

// counterBlock builds the 16-byte KD AES-CTR input for (label, seqNr)
// against the given salt, spec.md §4.2. The per-packet cipher counter
// of §4.3 is built separately, by packetCounter in cipher.go.
func counterBlock(salt []byte, label Label, seqNr uint32) []byte {
	block := make([]byte, 16)
	copy(block, salt)
	var lbl [4]byte
	binary.BigEndian.PutUint32(lbl[:], uint32(label))
	for i := 0; i < 4; i++ {
		block[8+i] ^= lbl[i]
	}
	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], seqNr)
	for i := 0; i < 4; i++ {
		block[12+i] ^= seq[i]
	}
	return block
}

// Generate implements KeyDeriver.
func (kd *KDState) Generate(dir Direction, label Label, seqNr uint32, n int) ([]byte, error) {
	kd.mu.RLock()
	defer kd.mu.RUnlock()

	if kd.block == nil {
		kd.log.Warnf("kd: generate called on uninitialized state (dir=%v label=%v)", dir, label)
		return nil, wrapf(ErrCryptoInit, "kd: not initialized")
	}

	converted := convertLabel(kd.role, dir, label)
	// The salt XORed against the label/seq block is master_salt itself,
	// matching calcCtr's ctr_[dir].salt_ = master_salt_ assignment.
	out := make([]byte, 0, n)
	ctr := counterBlock(kd.masterSaltUnlocked(), converted, seqNr)
	stream := cipher.NewCTR(kd.block, ctr)
	for len(out) < n {
		chunk := make([]byte, 16)
		stream.XORKeyStream(chunk, chunk)
		out = append(out, chunk...)
	}
	return out[:n], nil
}

// masterSaltUnlocked returns the stored master salt; the caller holds
// kd.mu.
func (kd *KDState) masterSaltUnlocked() []byte {
	return kd.masterSalt
}

// NullKeyDerivation always returns all-zero key material. Selectable
// only at construction time, spec.md §4.2 (used for debugging and
// plumbing tests, never wired in by default).
type NullKeyDerivation struct{}

// Generate implements KeyDeriver.
func (NullKeyDerivation) Generate(_ Direction, _ Label, _ uint32, n int) ([]byte, error) {
	return make([]byte, n), nil
}
