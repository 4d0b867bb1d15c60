package satp

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"
	"github.com/pion/randutil"
)

// ConnState is a Connection's lifecycle stage, spec.md §4.8:
// New -> Active -> Teardown. New -> Active happens on first successful
// KD initialization (which, in this implementation, is construction
// itself: NewConnection never returns a Connection whose KD failed to
// init). Active -> Teardown happens on external shutdown; every
// send/receive after Teardown is dropped.
type ConnState int32

const (
	ConnNew ConnState = iota
	ConnActive
	ConnTeardown
)

// Connection owns one peer relationship: its local sender id, the
// remote endpoint, a KDState per direction, and the monotonic send
// sequence counter, spec.md §3. A Connection exclusively owns its two
// KDStates; the RoutingTree it looks up against is shared-immutable
// and lives on the Pipeline, not here.
type Connection struct {
	SenderID uint16
	Remote   *net.UDPAddr

	role Role

	kdOut *KDState
	kdIn  *KDState

	sendSeq uint32 // atomic

	state int32 // atomic ConnState

	sendMu sync.Mutex // held across header-stamp + cipher invocation, spec.md §5

	log logging.LeveledLogger
}

// NewConnection derives both directions' KDStates from one
// master key/salt and brings the Connection to ConnActive. senderID
// of 0 picks a random non-zero one via pion/randutil's math-random generator
// (non-cryptographic: sender_id only diversifies key material and
// need not be unpredictable, spec.md §3).
func NewConnection(masterKey, masterSalt []byte, role Role, remote *net.UDPAddr, senderID uint16, lf logging.LoggerFactory) (*Connection, error) {
	kdOut, err := NewKDState(masterKey, masterSalt, role, lf)
	if err != nil {
		return nil, err
	}
	kdIn, err := NewKDState(masterKey, masterSalt, role, lf)
	if err != nil {
		return nil, err
	}

	if senderID == 0 {
		rng := randutil.NewMathRandomGenerator()
		for senderID == 0 {
			senderID = uint16(rng.Uint64())
		}
	}

	var log logging.LeveledLogger
	if lf != nil {
		log = lf.NewLogger("satp.connection")
	} else {
		log = logging.NewDefaultLoggerFactory().NewLogger("satp.connection")
	}

	c := &Connection{
		SenderID: senderID,
		Remote:   remote,
		role:     role,
		kdOut:    kdOut,
		kdIn:     kdIn,
		log:      log,
	}
	atomic.StoreInt32(&c.state, int32(ConnActive))
	return c, nil
}

// State reports the Connection's lifecycle stage.
func (c *Connection) State() ConnState {
	return ConnState(atomic.LoadInt32(&c.state))
}

// Teardown moves the Connection to ConnTeardown. Idempotent. After
// this call every NextSendSeq/KD accessor keeps working (so in-flight
// goroutines can finish their current packet) but Pipeline checks
// State() before starting a new one.
func (c *Connection) Teardown() {
	atomic.StoreInt32(&c.state, int32(ConnTeardown))
}

// NextSendSeq atomically increments and returns the next send sequence
// number. Lost increments on a partial failure before transmit are
// acceptable per spec.md §5 (sequence numbers need not be gap-free).
func (c *Connection) NextSendSeq() uint32 {
	return atomic.AddUint32(&c.sendSeq, 1) - 1
}

// OutboundKD returns the KDState used for packets this Connection
// sends.
func (c *Connection) OutboundKD() *KDState { return c.kdOut }

// InboundKD returns the KDState used for packets this Connection
// receives.
func (c *Connection) InboundKD() *KDState { return c.kdIn }

// Lock/Unlock serialize header-stamping + cipher invocation for one
// outgoing packet so that, within this Connection, packets sent from
// one goroutine appear on the wire in send order, spec.md §5. Lookup
// and decrypt on the receive path do not need this lock: each received
// datagram already carries its own header.
func (c *Connection) Lock()   { c.sendMu.Lock() }
func (c *Connection) Unlock() { c.sendMu.Unlock() }
