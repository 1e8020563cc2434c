package protocol

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Line names one of the six signals the programmer controls.
type Line int

const (
	// Clock is SCI, the serial clock input of the target
	Clock Line = iota

	// DataIn is SDI, the serial data input of the target
	DataIn

	// InstructionIn is SII, the serial instruction input of the target
	InstructionIn

	// DataOut is SDO, the serial data output of the target.
	// It is driven low by the host during Prog_enable and released afterwards.
	DataOut

	// Reset drives the high-voltage switch. The switch inverts:
	// High keeps 12V off the target's RESET pin, Low applies it.
	Reset

	// Supply switches VCC to the target
	Supply

	// NumLines is the number of lines
	NumLines = int(Supply) + 1
)

// Lines lists every Line in declaration order.
var Lines = []Line{Clock, DataIn, InstructionIn, DataOut, Reset, Supply}

func (l Line) String() string {
	switch l {
	case Clock:
		return "SCI"
	case DataIn:
		return "SDI"
	case InstructionIn:
		return "SII"
	case DataOut:
		return "SDO"
	case Reset:
		return "RST"
	case Supply:
		return "VCC"
	default:
		return fmt.Sprintf("Line(%d)", int(l))
	}
}

// Direction is the host-side direction of a Line.
type Direction int

const (
	// Input leaves the line floating and readable
	Input Direction = iota

	// Output drives the line
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Bus gives access to the six HVSP lines.
// Implementations need not be safe for concurrent use; a programming
// session owns the bus exclusively.
type Bus interface {
	// SetDirection switches a line between Input and Output
	SetDirection(line Line, dir Direction) error

	// SetLevel drives a line. On an Input line the level is remembered
	// and applied when the line next becomes an Output.
	SetLevel(line Line, level gpio.Level) error

	// ReadLevel samples a line
	ReadLevel(line Line) (gpio.Level, error)
}

// Delayer waits for at least the given duration.
// Spinning and sleeping are both valid; only the minimum matters.
type Delayer interface {
	Delay(d time.Duration)
}

// DelayFunc adapts a function to the Delayer interface.
type DelayFunc func(d time.Duration)

// Delay calls f(d).
func (f DelayFunc) Delay(d time.Duration) {
	f(d)
}

// FuseKind selects one of the fuse bytes.
type FuseKind int

const (
	// FuseLow is the low fuse byte
	FuseLow FuseKind = iota

	// FuseHigh is the high fuse byte
	FuseHigh

	// FuseExtended is the extended fuse byte
	FuseExtended
)

// FuseKinds lists every FuseKind in programming order.
var FuseKinds = []FuseKind{FuseLow, FuseHigh, FuseExtended}

func (k FuseKind) String() string {
	switch k {
	case FuseLow:
		return "low"
	case FuseHigh:
		return "high"
	case FuseExtended:
		return "extended"
	default:
		return fmt.Sprintf("FuseKind(%d)", int(k))
	}
}

// fuseCommands holds the instruction pairs that address one fuse byte.
type fuseCommands struct {
	// writeA and writeB strobe a previously loaded data byte into the fuse
	writeA, writeB byte

	// readA selects the fuse for output, readB shifts it out
	readA, readB byte
}

var fuseTable = map[FuseKind]fuseCommands{
	FuseLow:      {writeA: 0x64, writeB: 0x6C, readA: 0x68, readB: 0x6C},
	FuseHigh:     {writeA: 0x74, writeB: 0x7C, readA: 0x7A, readB: 0x7E},
	FuseExtended: {writeA: 0x66, writeB: 0x6E, readA: 0x6A, readB: 0x6E},
}

// Signature is the three byte device identifier.
type Signature [SignatureSize]byte

func (s Signature) String() string {
	return fmt.Sprintf("%02X %02X %02X", s[0], s[1], s[2])
}

// IsZero reports whether all signature bytes are zero.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// Timing holds the per-connection timing parameters.
type Timing struct {
	// PulseWidth is the SCI high time
	PulseWidth time.Duration

	// PollTimeout bounds the accumulated wait for SDO to go high after a fuse write
	PollTimeout time.Duration

	// PollMinInterval and PollMaxInterval bound the exponential re-sample
	// interval of the ready poll
	PollMinInterval time.Duration
	PollMaxInterval time.Duration
}

// DefaultTiming returns the default connection timing.
func DefaultTiming() Timing {
	return Timing{
		PulseWidth:      DefaultPulseWidth,
		PollTimeout:     DefaultPollTimeout,
		PollMinInterval: DefaultPollMinInterval,
		PollMaxInterval: DefaultPollMaxInterval,
	}
}

// normalized fills zero fields with defaults and raises values below the
// protocol minimums.
func (t Timing) normalized() Timing {
	def := DefaultTiming()
	switch {
	case t.PulseWidth <= 0:
		t.PulseWidth = def.PulseWidth
	case t.PulseWidth < MinPulseWidth:
		t.PulseWidth = MinPulseWidth
	}
	if t.PollTimeout <= 0 {
		t.PollTimeout = def.PollTimeout
	}
	if t.PollMinInterval <= 0 {
		t.PollMinInterval = def.PollMinInterval
	}
	if t.PollMaxInterval <= 0 {
		t.PollMaxInterval = def.PollMaxInterval
	}
	if t.PollMaxInterval < t.PollMinInterval {
		t.PollMaxInterval = t.PollMinInterval
	}
	return t
}
