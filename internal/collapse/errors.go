package collapse

import (
	"errors"
	"fmt"
)

var (
	// ErrMaterialization marks a failed materializer or To flight.
	ErrMaterialization = errors.New("materialization failed")
	// ErrBadSignalUsage is returned when the reserved collapse operation is
	// invoked with a receiver other than the stub it belongs to.
	ErrBadSignalUsage = errors.New("collapse operation invoked on a foreign receiver")
	// ErrUnknownMember is returned for names neither the stub nor its full
	// value define.
	ErrUnknownMember = errors.New("unknown member")
)

// MaterializationError reports which stub failed to materialize. The cell has
// already returned to empty when callers observe it.
type MaterializationError struct {
	Key   string
	Cause error
}

func (e *MaterializationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("materialize %s: %v", e.Key, ErrMaterialization)
	}
	return fmt.Sprintf("materialize %s: %v", e.Key, e.Cause)
}

// Unwrap exposes both the marker and the original cause.
func (e *MaterializationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrMaterialization}
	}
	return []error{ErrMaterialization, e.Cause}
}

// MemberError reports a lookup of an undefined member.
type MemberError struct {
	Key  string
	Name string
}

func (e *MemberError) Error() string {
	return fmt.Sprintf("%s: %v %q", e.Key, ErrUnknownMember, e.Name)
}

func (e *MemberError) Unwrap() error {
	return ErrUnknownMember
}
