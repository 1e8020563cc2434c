package protocol

import "time"

// Frame structure constants.
const (
	// FrameSlots is the number of clock pulses in one transfer:
	// start(1) + data(8) + stop(2)
	FrameSlots = 11

	// DataBits is the number of payload bits per frame
	DataBits = 8

	// SignatureSize is the number of signature bytes of an AVR device
	SignatureSize = 3
)

// Instruction bytes clocked on SII.
const (
	// InstrLoadCommand latches the SDI byte as the current command
	InstrLoadCommand = 0x4C

	// InstrLoadAddressLow latches the SDI byte as the low address byte
	InstrLoadAddressLow = 0x0C

	// InstrLoadDataLow latches the SDI byte as the low data byte
	InstrLoadDataLow = 0x2C

	// InstrReadSetup drives OE low so the addressed byte is loaded for output
	InstrReadSetup = 0x68

	// InstrReadOut shifts the loaded byte out on SDO
	InstrReadOut = 0x6C

	// InstrNone carries no instruction
	InstrNone = 0x00
)

// Command bytes loaded with InstrLoadCommand.
const (
	// CmdReadSignature selects signature/calibration byte reads
	CmdReadSignature = 0x08

	// CmdWriteFuse selects fuse programming
	CmdWriteFuse = 0x40

	// CmdReadFuse selects fuse and lock bit reads
	CmdReadFuse = 0x04

	// CmdNoOperation ends a programming sequence
	CmdNoOperation = 0x00
)

// Timing minimums from the HVSP electrical characteristics.
const (
	// MinPulseWidth is the minimum high time of SCI
	MinPulseWidth = 220 * time.Nanosecond

	// MinPowerSettle is the minimum wait between VCC on and 12V on RESET
	MinPowerSettle = 20 * time.Microsecond

	// MaxPowerSettle is the maximum wait between VCC on and 12V on RESET
	MaxPowerSettle = 60 * time.Microsecond

	// MinProgEnableHold is how long the Prog_enable lines must stay unchanged
	// after 12V is applied
	MinProgEnableHold = 10 * time.Microsecond

	// MinModeEntry is the wait after releasing SDO before the first instruction
	MinModeEntry = 300 * time.Microsecond

	// MinPowerDownHold is the wait between removing 12V and removing VCC
	MinPowerDownHold = 10 * time.Microsecond
)

// Defaults used by DefaultTiming.
const (
	// DefaultPulseWidth leaves a wide margin over MinPulseWidth
	DefaultPulseWidth = 1 * time.Microsecond

	// DefaultPollTimeout bounds the wait for a fuse write to complete.
	// Fuse writes take a few milliseconds on every supported device.
	DefaultPollTimeout = 100 * time.Millisecond

	// DefaultPollMinInterval is the first re-sample interval of the ready poll
	DefaultPollMinInterval = 10 * time.Microsecond

	// DefaultPollMaxInterval caps the re-sample interval of the ready poll
	DefaultPollMaxInterval = 1 * time.Millisecond
)
