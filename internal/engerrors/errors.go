// Package engerrors defines the grid engine's error taxonomy as sentinel
// values, following the sentinel-var style of pkg/errors. Callers compare
// with errors.Is against the sentinel; *Error carries the offending slot
// id(s) for logging.
package engerrors

import (
	"errors"
	"fmt"
)

var (
	// BadInput: malformed slot/config/number. Local: reject operation, continue.
	BadInput = errors.New("bad input")
	// InvalidTransition: illegal state edge. Local: reject upsert, log, continue.
	InvalidTransition = errors.New("invalid state transition")
	// IndexCorruption: a state-machine index invariant was violated. Attempt rebuild; if still
	// invalid, surface as fatal for the bot instance.
	IndexCorruption = errors.New("index corruption")
	// ChainTransient: timeout or RPC failure, retried with backoff.
	ChainTransient = errors.New("chain transient error")
	// ChainPermanent: rejected by the chain node (e.g. insufficient balance).
	ChainPermanent = errors.New("chain permanent error")
	// PersistenceTransient: same retry policy as ChainTransient, flagged via
	// persistenceWarning on the store.
	PersistenceTransient = errors.New("persistence transient error")
	// PrecisionLoss: size or price below minimum tick. Operation aborted for
	// that slot, logged.
	PrecisionLoss = errors.New("precision loss")
)

// Error wraps one of the taxonomy sentinels with the offending slot id(s)
// and a human-readable message, so logs and metrics can key on both the
// category (via errors.Is) and the specific slot. Cause optionally carries
// a finer-grained pkg/errors sentinel (e.g. apperrors.ErrInsufficientFunds)
// for callers that need to distinguish why a ChainPermanent rejection
// happened, without losing the coarse retry-policy classification.
type Error struct {
	Kind    error
	Cause   error
	SlotIDs []string
	Msg     string
}

func (e *Error) Error() string {
	if len(e.SlotIDs) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s (slots=%v)", e.Kind, e.Msg, e.SlotIDs)
}

// Unwrap exposes both Kind and Cause to errors.Is/errors.As, so a caller can
// match on the coarse taxonomy (ChainPermanent) or the specific reason
// (apperrors.ErrInsufficientFunds) interchangeably.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// New builds an *Error for the given sentinel, message, and slot ids.
func New(kind error, msg string, slotIDs ...string) *Error {
	return &Error{Kind: kind, Msg: msg, SlotIDs: slotIDs}
}

// NewWithCause builds an *Error carrying both the coarse taxonomy sentinel
// and a specific pkg/errors cause.
func NewWithCause(kind, cause error, msg string, slotIDs ...string) *Error {
	return &Error{Kind: kind, Cause: cause, Msg: msg, SlotIDs: slotIDs}
}

// Is lets errors.Is(err, engerrors.BadInput) match wrapped *Error values
// without requiring every caller to route through Unwrap explicitly.
func Is(err error, kind error) bool {
	return errors.Is(err, kind)
}
