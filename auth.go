package satp

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // SATP's auth algorithm is HMAC-SHA1 by wire format, spec.md §4.4
	"crypto/subtle"

	"github.com/pion/logging"
)

// DigestLen is HMAC-SHA1's native output length. The wire tag is this
// truncated to TagLen bytes, spec.md §4.4.
const DigestLen = 20

// AuthAlgo generates and verifies the trailing auth tag over an
// EncryptedPacket's authenticated portion (header+ciphertext), spec.md
// §4.4.
type AuthAlgo interface {
	Generate(kd KeyDeriver, dir Direction, p *EncryptedPacket, seqNr uint32) error
	Verify(kd KeyDeriver, dir Direction, p *EncryptedPacket, seqNr uint32) error
}

// HmacSha1Auth is the real AuthAlgo, grounded on
// original_source/src/authAlgo.cpp::Sha1AuthAlgo.
type HmacSha1Auth struct {
	log logging.LeveledLogger
}

// NewHmacSha1Auth builds the real auth algorithm.
func NewHmacSha1Auth(lf logging.LoggerFactory) *HmacSha1Auth {
	var log logging.LeveledLogger
	if lf != nil {
		log = lf.NewLogger("satp.auth")
	} else {
		log = logging.NewDefaultLoggerFactory().NewLogger("satp.auth")
	}
	return &HmacSha1Auth{log: log}
}

// Generate computes the digest and writes it into the packet's tag
// region (growing the buffer into tag state first), spec.md §4.4
// "Generate" rule:
//
//   - copy the trailing min(tag_len, 20) bytes of the digest into the
//     trailing bytes of the tag region;
//   - if tag_len > 20, zero-fill the leading tag_len-20 bytes.
func (a *HmacSha1Auth) Generate(kd KeyDeriver, dir Direction, p *EncryptedPacket, seqNr uint32) error {
	if err := p.AddAuthTag(); err != nil {
		return err
	}
	if p.TagLen() == 0 {
		return nil
	}

	digest, err := a.digest(kd, dir, p, seqNr)
	if err != nil {
		return err
	}

	tag, err := p.AuthTag()
	if err != nil {
		return err
	}
	n := p.TagLen()
	copyLen := DigestLen
	if n < copyLen {
		copyLen = n
	}
	if n > DigestLen {
		for i := 0; i < n-DigestLen; i++ {
			tag[i] = 0
		}
	}
	copy(tag[n-copyLen:], digest[DigestLen-copyLen:])
	return nil
}

// Verify recomputes the digest and compares it in constant time
// against the packet's tag, spec.md §4.4 "Verify" rule. On any
// mismatch (including a non-zero leading pad for tag_len > 20) it
// returns ErrBadAuth and the caller drops the packet. tag_len == 0
// disables authentication: Verify is then a no-op that always
// succeeds, spec.md §8.
func (a *HmacSha1Auth) Verify(kd KeyDeriver, dir Direction, p *EncryptedPacket, seqNr uint32) error {
	if err := p.WithAuthTag(true); err != nil {
		return err
	}
	if p.TagLen() == 0 {
		return nil
	}

	digest, err := a.digest(kd, dir, p, seqNr)
	if err != nil {
		return err
	}

	tag, err := p.AuthTag()
	if err != nil {
		return err
	}
	n := p.TagLen()
	copyLen := DigestLen
	if n < copyLen {
		copyLen = n
	}
	if n > DigestLen {
		for i := 0; i < n-DigestLen; i++ {
			if tag[i] != 0 {
				a.log.Warnf("auth: non-zero padding byte in %d-byte tag", n)
				return wrapf(ErrBadAuth, "auth: non-zero padding in oversized tag")
			}
		}
	}
	if subtle.ConstantTimeCompare(tag[n-copyLen:], digest[DigestLen-copyLen:]) != 1 {
		a.log.Warnf("auth: tag mismatch")
		return wrapf(ErrBadAuth, "auth: tag mismatch")
	}
	return nil
}

func (a *HmacSha1Auth) digest(kd KeyDeriver, dir Direction, p *EncryptedPacket, seqNr uint32) ([]byte, error) {
	key, err := kd.Generate(dir, LabelAuth, seqNr, DigestLen)
	if err != nil {
		return nil, wrapf(ErrCryptoInit, "auth: deriving key: %v", err)
	}
	portion, err := p.AuthenticatedPortion()
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha1.New, key)
	mac.Write(portion)
	return mac.Sum(nil), nil
}

// NullAuth always succeeds and emits zero bytes; used with NullCipher
// for plumbing tests, spec.md §4.4.
type NullAuth struct{}

// Generate implements AuthAlgo.
func (NullAuth) Generate(_ KeyDeriver, _ Direction, p *EncryptedPacket, _ uint32) error {
	if err := p.AddAuthTag(); err != nil {
		return err
	}
	tag, err := p.AuthTag()
	if err != nil {
		return err
	}
	for i := range tag {
		tag[i] = 0
	}
	return nil
}

// Verify implements AuthAlgo.
func (NullAuth) Verify(_ KeyDeriver, _ Direction, p *EncryptedPacket, _ uint32) error {
	return p.WithAuthTag(true)
}
