// Package replay is the optional, external sliding-window replay
// collaborator spec.md §4.7/§9 allows a peer to bolt onto the receive
// path: "a peer MAY implement a sliding window externally." It is
// never constructed by satp.Pipeline on its own (a caller opts in
// with satp.WithReplayDetector(replay.New(...))), and the core's
// default receive-path behavior (sequence numbers are not used for
// replay windowing) is unchanged without it.
package replay

import "github.com/pion/transport/v3/replaydetector"

// Detector adapts SATP's 32-bit header sequence number to
// pion/transport's 64-bit sliding-window replay detector.
type Detector struct {
	d replaydetector.Detector
}

// New builds a Detector with the given window size (in sequence
// numbers) and the largest sequence number SATP's 32-bit header field
// can carry.
func New(windowSize uint64) *Detector {
	return &Detector{d: replaydetector.New(windowSize, uint64(^uint32(0)))}
}

// Check reports whether seqNr is new with respect to the current
// window. If ok is true, the caller MUST call the returned accept
// function once the packet has otherwise passed verification, which
// commits seqNr into the window; if ok is false, the packet is a
// replay and must be dropped without calling accept.
func (d *Detector) Check(seqNr uint32) (accept func(), ok bool) {
	return d.d.Check(uint64(seqNr))
}
