package doctor

import (
	"time"

	"github.com/moffa90/go-hvsp/device"
	"github.com/moffa90/go-hvsp/protocol"
)

// Report is the result of one session.
type Report struct {
	// Signature is the signature read from the target
	Signature protocol.Signature

	// Device is the matched descriptor, nil when nothing matched
	Device *device.Descriptor

	// Written lists the fuses programmed, in order
	Written []device.Fuse

	// Read lists the fuse values read back, in order
	Read []device.Fuse

	// Success is the session outcome
	Success bool

	// Err is the error that ended the session, nil on success
	Err error

	// Duration is the wall time of the session
	Duration time.Duration
}

// ReadValue returns the value read back for a fuse.
func (r *Report) ReadValue(kind protocol.FuseKind) (byte, bool) {
	for _, f := range r.Read {
		if f.Kind == kind {
			return f.Value, true
		}
	}
	return 0, false
}
