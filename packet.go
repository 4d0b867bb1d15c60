package satp

import "encoding/binary"

// PayloadType is the 2-byte, network-byte-order prefix carried at the
// front of a PlainPacket's payload, spec.md §3.
type PayloadType uint16

const (
	// PayloadTUN means "family unknown, dispatch by first nibble".
	PayloadTUN PayloadType = 0x0000
	// PayloadTUN4 is an IPv4 frame.
	PayloadTUN4 PayloadType = 0x0800
	// PayloadTUN6 is an IPv6 frame.
	PayloadTUN6 PayloadType = 0x86DD
	// PayloadTAP is a raw Ethernet frame.
	PayloadTAP PayloadType = 0x6558
)

const plainHeaderLen = 2

// PlainPacket is a Buffer view with a 2-byte payload-type prefix
// followed by the inner frame, spec.md §3/§4.1.
type PlainPacket struct {
	buf *Buffer
}

// NewPlainPacket allocates a PlainPacket able to hold a payload of up
// to payloadCap bytes, growable so payload length can shrink and grow
// past that.
func NewPlainPacket(payloadCap int) *PlainPacket {
	return &PlainPacket{buf: NewBuffer(plainHeaderLen+payloadCap, true)}
}

// WrapPlainPacket builds a PlainPacket view directly over an existing
// buffer whose first two bytes are the payload-type prefix. The
// pipeline's receive path does not use it: it decrypts into a fresh
// NewPlainPacket.
func WrapPlainPacket(b *Buffer) (*PlainPacket, error) {
	if b.Len() < plainHeaderLen {
		return nil, wrapf(ErrMalformed, "plain packet: buffer shorter than header (%d < %d)", b.Len(), plainHeaderLen)
	}
	return &PlainPacket{buf: b}, nil
}

// Buffer returns the packet's backing Buffer.
func (p *PlainPacket) Buffer() *Buffer { return p.buf }

// Len returns header + payload length.
func (p *PlainPacket) Len() int { return p.buf.Len() }

// PayloadType reads the 2-byte type prefix.
func (p *PlainPacket) PayloadType() (PayloadType, error) {
	s, err := p.buf.slice(0, plainHeaderLen)
	if err != nil {
		return 0, wrapf(ErrMalformed, "plain packet: reading payload type: %v", err)
	}
	return PayloadType(binary.BigEndian.Uint16(s)), nil
}

// SetPayloadType writes the 2-byte type prefix. If typ is PayloadTUN
// (family unspecified) and the payload is non-empty, it is sniffed
// from the first nibble of the payload per spec.md §4.6/§8 S5: 4 →
// TUN4, 6 → TUN6. Any other value, including an explicit PayloadTAP,
// is written through unchanged (callers that already know the family
// set it directly to suppress sniffing).
func (p *PlainPacket) SetPayloadType(typ PayloadType) error {
	hdr, err := p.buf.slice(0, plainHeaderLen)
	if err != nil {
		return wrapf(ErrMalformed, "plain packet: writing payload type: %v", err)
	}
	if typ == PayloadTUN {
		if payload, perr := p.payloadBytes(); perr == nil && len(payload) > 0 {
			switch payload[0] >> 4 {
			case 4:
				typ = PayloadTUN4
			case 6:
				typ = PayloadTUN6
			}
		}
	}
	binary.BigEndian.PutUint16(hdr, uint16(typ))
	return nil
}

// Payload returns the packet's payload, i.e. everything after the
// 2-byte type prefix.
func (p *PlainPacket) Payload() ([]byte, error) {
	return p.payloadBytes()
}

func (p *PlainPacket) payloadBytes() ([]byte, error) {
	n := p.buf.Len() - plainHeaderLen
	if n < 0 {
		return nil, wrapf(ErrMalformed, "plain packet: buffer shorter than header")
	}
	return p.buf.slice(plainHeaderLen, n)
}

// SetPayloadLength resizes the packet so its payload is exactly n
// bytes, re-deriving the view if the backing buffer grew.
func (p *PlainPacket) SetPayloadLength(n int) error {
	return p.buf.SetLength(plainHeaderLen + n)
}

// satpHeaderLen is the fixed 8-byte SATP header: seq_nr(4) ∥
// sender_id(2) ∥ mux(2), all network byte order, spec.md §3/§6.
const satpHeaderLen = 8

// EncryptedPacket is a Buffer view with the fixed 8-byte SATP header,
// a payload region, and an optional trailing auth tag, spec.md §3/§4.1.
type EncryptedPacket struct {
	buf       *Buffer
	tagLen    int
	withTag   bool
}

// NewEncryptedPacket allocates an EncryptedPacket sized for a payload
// of up to payloadCap bytes plus a tagLen-byte auth tag region (not
// yet counted in the buffer's length: use AddAuthTag to grow into it).
func NewEncryptedPacket(payloadCap, tagLen int) *EncryptedPacket {
	return &EncryptedPacket{
		buf:    NewBuffer(satpHeaderLen+payloadCap, true),
		tagLen: tagLen,
	}
}

// WrapEncryptedPacket builds an EncryptedPacket view over a datagram
// already read off the wire. withTag should be true when the datagram
// is known to carry a trailing auth tag of tagLen bytes (the common
// receive-path case before verification removes it).
func WrapEncryptedPacket(b *Buffer, tagLen int, withTag bool) (*EncryptedPacket, error) {
	p := &EncryptedPacket{buf: b, tagLen: tagLen}
	if err := p.WithAuthTag(withTag); err != nil {
		return nil, err
	}
	return p, nil
}

// Buffer returns the packet's backing Buffer.
func (p *EncryptedPacket) Buffer() *Buffer { return p.buf }

// TagLen returns the negotiated auth tag length. 0 disables
// authentication entirely, spec.md §8.
func (p *EncryptedPacket) TagLen() int { return p.tagLen }

func (p *EncryptedPacket) header() ([]byte, error) {
	h, err := p.buf.slice(0, satpHeaderLen)
	if err != nil {
		return nil, wrapf(ErrMalformed, "encrypted packet: buffer shorter than header: %v", err)
	}
	return h, nil
}

// SeqNr reads the 32-bit sequence number.
func (p *EncryptedPacket) SeqNr() (uint32, error) {
	h, err := p.header()
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(h[0:4]), nil
}

// SenderID reads the 16-bit sender id.
func (p *EncryptedPacket) SenderID() (uint16, error) {
	h, err := p.header()
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(h[4:6]), nil
}

// Mux reads the 16-bit mux value.
func (p *EncryptedPacket) Mux() (uint16, error) {
	h, err := p.header()
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(h[6:8]), nil
}

// SetHeader stamps all three header fields at once, as the send path
// does for every outgoing packet (spec.md §4.6 step 3).
func (p *EncryptedPacket) SetHeader(seqNr uint32, senderID, mux uint16) error {
	h, err := p.header()
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(h[0:4], seqNr)
	binary.BigEndian.PutUint16(h[4:6], senderID)
	binary.BigEndian.PutUint16(h[6:8], mux)
	return nil
}

// PayloadLen returns the length of the ciphertext payload, i.e.
// excluding the header and (if present) the trailing auth tag.
func (p *EncryptedPacket) PayloadLen() int {
	n := p.buf.Len() - satpHeaderLen
	if p.withTag {
		n -= p.tagLen
	}
	if n < 0 {
		return 0
	}
	return n
}

// Payload returns the ciphertext payload region.
func (p *EncryptedPacket) Payload() ([]byte, error) {
	n := p.PayloadLen()
	return p.buf.slice(satpHeaderLen, n)
}

// SetPayloadLength resizes the packet so its ciphertext payload is
// exactly n bytes, preserving whatever auth-tag state was set.
func (p *EncryptedPacket) SetPayloadLength(n int) error {
	total := satpHeaderLen + n
	if p.withTag {
		total += p.tagLen
	}
	return p.buf.SetLength(total)
}

// AuthenticatedPortion returns {header, payload}, everything in the
// datagram except the trailing auth tag, spec.md §4.1/§4.4. This is
// exactly what HMAC is computed over.
func (p *EncryptedPacket) AuthenticatedPortion() ([]byte, error) {
	n := p.buf.Len()
	if p.withTag {
		n -= p.tagLen
	}
	if n < 0 {
		n = 0
	}
	return p.buf.slice(0, n)
}

// WithAuthTag toggles whether the trailing tagLen bytes are treated as
// the auth tag region rather than payload. Growing into tag state when
// the buffer is too short to hold header+tag is ErrMalformed.
func (p *EncryptedPacket) WithAuthTag(b bool) error {
	if b == p.withTag {
		return nil
	}
	if b && p.buf.Len() < satpHeaderLen+p.tagLen {
		return wrapf(ErrMalformed, "encrypted packet: too short (%d) to carry a %d-byte auth tag", p.buf.Len(), p.tagLen)
	}
	p.withTag = b
	return nil
}

// AuthTag returns the trailing tagLen-byte tag region. WithAuthTag(true)
// must have been called (directly, or via AddAuthTag) first.
func (p *EncryptedPacket) AuthTag() ([]byte, error) {
	if !p.withTag {
		return nil, wrapf(ErrMalformed, "encrypted packet: auth tag not enabled")
	}
	if p.tagLen == 0 {
		return nil, nil
	}
	return p.buf.slice(p.buf.Len()-p.tagLen, p.tagLen)
}

// AddAuthTag grows the buffer by tagLen bytes and marks that region as
// the auth tag, spec.md §4.1. Idempotent.
func (p *EncryptedPacket) AddAuthTag() error {
	if p.withTag {
		return nil
	}
	if p.tagLen > 0 {
		if err := p.buf.SetLength(p.buf.Len() + p.tagLen); err != nil {
			return err
		}
	}
	p.withTag = true
	return nil
}

// RemoveAuthTag shrinks the buffer back down by tagLen bytes, undoing
// AddAuthTag. Idempotent. Per spec.md §8,
// RemoveAuthTag(AddAuthTag(p)) == p.
func (p *EncryptedPacket) RemoveAuthTag() error {
	if !p.withTag {
		return nil
	}
	if p.tagLen > 0 {
		if err := p.buf.SetLength(p.buf.Len() - p.tagLen); err != nil {
			return err
		}
	}
	p.withTag = false
	return nil
}
