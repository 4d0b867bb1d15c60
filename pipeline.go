package satp

import (
	"net"
	"sync/atomic"

	"github.com/pion/logging"
)

// Counters tracks per-packet drop reasons, spec.md §7. All fields are
// updated with sync/atomic so worker goroutines never contend on a
// lock just to bump a counter.
type Counters struct {
	Malformed uint64
	BadAuth   uint64
	NoRoute   uint64
}

func (c *Counters) incMalformed() { atomic.AddUint64(&c.Malformed, 1) }
func (c *Counters) incBadAuth()   { atomic.AddUint64(&c.BadAuth, 1) }
func (c *Counters) incNoRoute()   { atomic.AddUint64(&c.NoRoute, 1) }

// Datagram is an outbound wire message paired with the endpoint it
// should be sent to, spec.md §6 Pipeline::on_plain return value.
type Datagram struct {
	Bytes    []byte
	Endpoint *net.UDPAddr
}

// ReplayChecker is the optional collaborator spec.md §4.7/§9 allows a
// peer to bolt onto the receive path; see package replay. Pipeline
// never constructs one itself.
type ReplayChecker interface {
	Check(seqNr uint32) (accept func(), ok bool)
}

// Pipeline ties buffer/packet framing, KD, cipher, auth, and the
// routing tree into the send-path and receive-path state machines of
// spec.md §4.6/§4.7. It holds no connection-specific mutable state
// itself (that lives on Connection); Pipeline is the orchestration,
// shared across every Connection it serves.
type Pipeline struct {
	cipher CipherAlgo
	auth   AuthAlgo
	tagLen int
	keyLen int

	routes *RoutingTree
	replay ReplayChecker

	counters Counters
	log      logging.LeveledLogger
}

// PipelineOption configures optional Pipeline behavior at construction.
type PipelineOption func(*Pipeline)

// WithReplayDetector opts a Pipeline's receive path into replay
// rejection via an externally-supplied ReplayChecker (typically
// package replay's Detector, wrapping pion/transport's sliding-window
// detector). Without this option, sequence numbers are never used for
// replay windowing, spec.md §4.7 (the default, unmodified behavior).
func WithReplayDetector(r ReplayChecker) PipelineOption {
	return func(p *Pipeline) { p.replay = r }
}

// WithCipherAlgo overrides the default AES-CTR cipher, e.g. with
// NullCipher for plumbing tests.
func WithCipherAlgo(c CipherAlgo) PipelineOption {
	return func(p *Pipeline) { p.cipher = c }
}

// WithAuthAlgo overrides the default HMAC-SHA1 auth algorithm, e.g.
// with NullAuth for plumbing tests (spec.md §4.4).
func WithAuthAlgo(a AuthAlgo) PipelineOption {
	return func(p *Pipeline) { p.auth = a }
}

// NewPipeline builds a Pipeline with a real AES-CTR cipher (keyLen
// bytes) and HMAC-SHA1 auth (tagLen bytes), wired to routes.
func NewPipeline(routes *RoutingTree, keyLen, tagLen int, lf logging.LoggerFactory, opts ...PipelineOption) (*Pipeline, error) {
	cipherAlgo, err := NewAesCTRCipher(keyLen, lf)
	if err != nil {
		return nil, err
	}

	var log logging.LeveledLogger
	if lf != nil {
		log = lf.NewLogger("satp.pipeline")
	} else {
		log = logging.NewDefaultLoggerFactory().NewLogger("satp.pipeline")
	}

	p := &Pipeline{
		cipher: cipherAlgo,
		auth:   NewHmacSha1Auth(lf),
		tagLen: tagLen,
		keyLen: keyLen,
		routes: routes,
		log:    log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Counters returns the pipeline's live drop counters.
func (p *Pipeline) Counters() *Counters { return &p.counters }

// AddRoute inserts a static route into the pipeline's shared routing
// tree, spec.md §6 Pipeline::add_route. Not safe to call concurrently
// with OnPlain: routes are meant to be loaded once at startup,
// spec.md §4.5/§5.
func (p *Pipeline) AddRoute(prefix []byte, prefixLenBits int, mux uint16) error {
	return p.routes.Insert(prefix, prefixLenBits, mux)
}

// innerDestAddr extracts the destination address bytes used for the
// routing lookup from a plain frame's payload, based on its payload
// type: 4 bytes at the IPv4 destination offset for TUN4, 16 bytes at
// the IPv6 destination offset for TUN6. TUN (unsniffed) and TAP frames
// have no routable inner address at this layer and return
// ErrMalformed (callers are expected to have sniffed TUN already via
// PlainPacket.SetPayloadType before reaching the send path).
func innerDestAddr(typ PayloadType, payload []byte) ([]byte, error) {
	switch typ {
	case PayloadTUN4:
		const ipv4DestOff = 16
		if len(payload) < ipv4DestOff+4 {
			return nil, wrapf(ErrMalformed, "pipeline: TUN4 payload too short for IP header")
		}
		return payload[ipv4DestOff : ipv4DestOff+4], nil
	case PayloadTUN6:
		const ipv6DestOff = 24
		if len(payload) < ipv6DestOff+16 {
			return nil, wrapf(ErrMalformed, "pipeline: TUN6 payload too short for IP header")
		}
		return payload[ipv6DestOff : ipv6DestOff+16], nil
	default:
		return nil, wrapf(ErrMalformed, "pipeline: no routable inner address for payload type %#04x", uint16(typ))
	}
}

// OnPlain is the send-path entry point, spec.md §4.6. frame is a raw
// tun/tap read; typ lets the caller pre-set PayloadTAP to suppress
// TUN sniffing (spec.md §8 S5). Returns (nil, nil) on a locally
// recovered per-packet drop (no route, malformed input); returns a
// non-nil error only for a CryptoInit-class failure, which the caller
// should treat as fatal to the Connection.
func (p *Pipeline) OnPlain(conn *Connection, typ PayloadType, frame []byte) (*Datagram, error) {
	if conn.State() != ConnActive {
		return nil, nil
	}

	plain := NewPlainPacket(len(frame))
	if err := plain.SetPayloadLength(len(frame)); err != nil {
		p.counters.incMalformed()
		p.log.Warnf("pipeline: send: %v", err)
		return nil, nil
	}
	payload, err := plain.Payload()
	if err != nil {
		p.counters.incMalformed()
		p.log.Warnf("pipeline: send: %v", err)
		return nil, nil
	}
	copy(payload, frame)
	if err := plain.SetPayloadType(typ); err != nil {
		p.counters.incMalformed()
		p.log.Warnf("pipeline: send: %v", err)
		return nil, nil
	}

	resolvedType, err := plain.PayloadType()
	if err != nil {
		p.counters.incMalformed()
		return nil, nil
	}

	// TAP frames carry no routable inner IP address; they only ever
	// match a default route (prefix_len == 0), spec.md §9.
	var destAddr []byte
	if resolvedType != PayloadTAP {
		destAddr, err = innerDestAddr(resolvedType, payload)
		if err != nil {
			p.counters.incMalformed()
			p.log.Warnf("pipeline: send: %v", err)
			return nil, nil
		}
	}
	mux, err := p.routes.Lookup(destAddr)
	if err != nil {
		p.counters.incNoRoute()
		p.log.Warnf("pipeline: send: %v", err)
		return nil, nil
	}

	conn.Lock()
	defer conn.Unlock()

	seqNr := conn.NextSendSeq()
	enc := NewEncryptedPacket(plain.Len(), p.tagLen)
	if err := p.cipher.Encrypt(conn.OutboundKD(), DirOutbound, plain, enc, seqNr, conn.SenderID, mux); err != nil {
		return nil, err
	}
	if err := p.auth.Generate(conn.OutboundKD(), DirOutbound, enc, seqNr); err != nil {
		return nil, err
	}

	return &Datagram{Bytes: append([]byte(nil), enc.Buffer().Bytes()...), Endpoint: conn.Remote}, nil
}

// OnWire is the receive-path entry point, spec.md §4.7. datagram is a
// raw UDP payload. Returns (nil, nil) on a locally recovered
// per-packet drop; the frame, with its 2-byte payload-type prefix
// already stripped back to payload, is returned to the caller for the
// tun/tap sink on success.
func (p *Pipeline) OnWire(conn *Connection, datagram []byte) ([]byte, error) {
	if conn.State() != ConnActive {
		return nil, nil
	}

	minLen := satpHeaderLen + p.tagLen
	if len(datagram) < minLen {
		p.counters.incMalformed()
		p.log.Warnf("pipeline: recv: datagram shorter than %d bytes", minLen)
		return nil, nil
	}

	buf := WrapBuffer(append([]byte(nil), datagram...))
	enc, err := WrapEncryptedPacket(buf, p.tagLen, true)
	if err != nil {
		p.counters.incMalformed()
		p.log.Warnf("pipeline: recv: %v", err)
		return nil, nil
	}

	seqNr, err := enc.SeqNr()
	if err != nil {
		p.counters.incMalformed()
		return nil, nil
	}

	if err := p.auth.Verify(conn.InboundKD(), DirInbound, enc, seqNr); err != nil {
		p.counters.incBadAuth()
		p.log.Warnf("pipeline: recv: %v", err)
		return nil, nil
	}

	if p.replay != nil {
		accept, ok := p.replay.Check(seqNr)
		if !ok {
			p.counters.incBadAuth()
			p.log.Warnf("pipeline: recv: replay check rejected seq %d", seqNr)
			return nil, nil
		}
		defer accept()
	}

	plain := NewPlainPacket(enc.PayloadLen())
	if err := p.cipher.Decrypt(conn.InboundKD(), DirInbound, enc, plain); err != nil {
		return nil, err
	}

	payload, err := plain.Payload()
	if err != nil {
		p.counters.incMalformed()
		p.log.Warnf("pipeline: recv: %v", err)
		return nil, nil
	}
	return append([]byte(nil), payload...), nil
}
