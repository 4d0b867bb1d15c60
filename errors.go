package satp

import "github.com/pkg/errors"

// Sentinel error kinds, spec.md §7. Callers switch on these with
// errors.Is/errors.Cause rather than string matching; pkg/errors keeps
// the human-readable chain around for logging.
var (
	// ErrMalformed: packet too short, header fields out of range, or the
	// auth region is inconsistent with the buffer's current length.
	ErrMalformed = errors.New("malformed packet")

	// ErrBadAuth: HMAC verification failed.
	ErrBadAuth = errors.New("authentication tag mismatch")

	// ErrNoRoute: destination address has no matching routing prefix.
	ErrNoRoute = errors.New("no route")

	// ErrCryptoInit: one-time setup failure (unsupported key length,
	// cipher init failure). Fatal for the owning Connection/KD.
	ErrCryptoInit = errors.New("crypto init failed")
)

// wrapf attaches context to one of the sentinel kinds above while
// keeping errors.Cause(err) == kind, so callers can still classify the
// error after it has picked up a message trail.
func wrapf(kind error, format string, args ...interface{}) error {
	return errors.Wrapf(kind, format, args...)
}
