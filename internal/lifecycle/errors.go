package lifecycle

import (
	"errors"
	"fmt"

	"order-workflow/internal/models"
)

// RejectKind classifies why a command was refused.
type RejectKind string

const (
	RejectUnauthenticated    RejectKind = "UNAUTHENTICATED"
	RejectForbidden          RejectKind = "FORBIDDEN"
	RejectNotFound           RejectKind = "NOT_FOUND"
	RejectInvalidTransition  RejectKind = "INVALID_TRANSITION"
	RejectPreconditionFailed RejectKind = "PRECONDITION_FAILED"
	RejectConflict           RejectKind = "CONFLICT"
	RejectRepository         RejectKind = "REPOSITORY_ERROR"
	RejectInvalidPricing     RejectKind = "INVALID_PRICING"
)

// Rejection is a refused command. It always carries the order's current state
// (when known) so the caller can show what actually happened, e.g. "this order
// was already assigned to another driver". A rejection never implies any
// mutation took place.
type Rejection struct {
	Kind   RejectKind
	State  models.State
	Reason string
}

func (r *Rejection) Error() string {
	if r.State == "" {
		return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
	}
	return fmt.Sprintf("%s (state %s): %s", r.Kind, r.State, r.Reason)
}

// Reject builds a typed rejection.
func Reject(kind RejectKind, state models.State, format string, args ...interface{}) *Rejection {
	return &Rejection{Kind: kind, State: state, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the rejection kind from an error chain, or RejectRepository
// for anything that is not a typed rejection.
func KindOf(err error) RejectKind {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Kind
	}
	return RejectRepository
}
