package doctor

import (
	"errors"
	"fmt"

	"github.com/moffa90/go-hvsp/protocol"
)

// ErrSessionActive is returned when a session is started while another one
// runs on the same Programmer.
var ErrSessionActive = errors.New("programming session already active")

// UnknownDeviceError indicates that the signature matched no supported device.
type UnknownDeviceError struct {
	Signature protocol.Signature
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("unknown device: signature %s", e.Signature)
}

// VerifyMismatchError indicates that a fuse read back differently from what was written.
type VerifyMismatchError struct {
	Fuse     protocol.FuseKind
	Expected byte
	Actual   byte
}

func (e *VerifyMismatchError) Error() string {
	return fmt.Sprintf("verify mismatch: %s fuse expected 0x%02X, read 0x%02X",
		e.Fuse, e.Expected, e.Actual)
}

// Outcome collapses a session error to the pass/fail result shown to the operator.
func Outcome(err error) bool {
	return err == nil
}
