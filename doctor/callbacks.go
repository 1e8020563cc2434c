package doctor

import (
	"time"

	"github.com/moffa90/go-hvsp/protocol"
)

// Progress phases.
const (
	PhasePowerUp   = "power-up"
	PhaseIdentify  = "identifying"
	PhaseWriting   = "writing"
	PhaseVerifying = "verifying"
	PhaseReading   = "reading"
	PhasePowerDown = "power-down"
	PhaseComplete  = "complete"
	PhaseFailed    = "failed"
)

// Progress describes where a session is.
// Passed to ProgressCallback at every state change and fuse step.
type Progress struct {
	// State is the session state when the callback fired
	State State

	// Phase describes the current operation phase:
	//   "power-up"    - Applying VCC and 12V, entering HVSP mode
	//   "identifying" - Reading the device signature
	//   "writing"     - Programming a fuse byte
	//   "verifying"   - Reading a fuse byte back
	//   "reading"     - Reading a fuse byte without writing (dry run)
	//   "power-down"  - Removing 12V and VCC
	//   "complete"    - Session finished successfully
	//   "failed"      - Session finished with an error
	Phase string

	// Device is the name of the identified part, empty until identified
	Device string

	// Fuse is the fuse being written or read; only meaningful in the
	// writing, verifying and reading phases
	Fuse protocol.FuseKind

	// ElapsedTime is the time elapsed since the session started
	ElapsedTime time.Duration
}

// ProgressCallback is called during a session to report progress.
// Implementations should return quickly: the target is powered while the
// callback runs.
//
// Example:
//
//	prog := doctor.New(bus, delay,
//	    doctor.WithProgressCallback(func(p doctor.Progress) {
//	        fmt.Printf("[%s] %s %s\n", p.State, p.Phase, p.Device)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the programmer.
// This allows integration with any logging framework; *slog.Logger satisfies it.
//
// Example with log/slog:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
//	prog := doctor.New(bus, delay, doctor.WithLogger(logger))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
