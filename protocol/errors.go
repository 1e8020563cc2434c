package protocol

import (
	"errors"
	"fmt"
	"time"
)

// ErrTargetUnresponsive is matched by errors.Is for every *TargetUnresponsiveError.
var ErrTargetUnresponsive = errors.New("target unresponsive")

// TargetUnresponsiveError indicates that SDO never went high after a fuse write.
type TargetUnresponsiveError struct {
	// Fuse is the fuse being written when the poll expired
	Fuse FuseKind

	// Waited is the accumulated time spent waiting
	Waited time.Duration
}

func (e *TargetUnresponsiveError) Error() string {
	return fmt.Sprintf("target unresponsive: %s fuse write not complete after %s", e.Fuse, e.Waited)
}

// Is reports whether target is ErrTargetUnresponsive.
func (e *TargetUnresponsiveError) Is(target error) bool {
	return target == ErrTargetUnresponsive
}

// BusError wraps a failure of the underlying Bus.
type BusError struct {
	// Line is the line being accessed
	Line Line

	// Op is "direction", "set" or "read"
	Op string

	// Err is the error returned by the Bus
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Line, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// IsBusError returns true if the error is, or wraps, a BusError.
func IsBusError(err error) bool {
	var be *BusError
	return errors.As(err, &be)
}
