package doctor

import (
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/moffa90/go-hvsp/protocol"
)

// Default session delays.
const (
	DefaultPowerSettle    = protocol.MaxPowerSettle
	DefaultProgEnableHold = 20 * time.Microsecond
	DefaultModeEntry      = protocol.MinModeEntry
	DefaultPowerDownHold  = protocol.MinPowerDownHold
)

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called during a session to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Timing holds the clock pulse width and the ready poll bounds
	Timing protocol.Timing

	// PowerSettle is the wait between raising VCC and applying 12V
	PowerSettle time.Duration

	// ProgEnableHold is how long the Prog_enable pattern is held after 12V
	ProgEnableHold time.Duration

	// ModeEntry is the wait between releasing SDO and the first instruction
	ModeEntry time.Duration

	// PowerDownHold is the wait between removing 12V and removing VCC
	PowerDownHold time.Duration

	// Verify enables reading every written fuse back
	Verify bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Timing:         protocol.DefaultTiming(),
		PowerSettle:    DefaultPowerSettle,
		ProgEnableHold: DefaultProgEnableHold,
		ModeEntry:      DefaultModeEntry,
		PowerDownHold:  DefaultPowerDownHold,
		Verify:         true,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track session progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the programmer operations.
//
// Example:
//
//	prog := doctor.New(bus, delay, doctor.WithLogger(slog.Default()))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithPulseWidth sets how long the clock is held high per pulse.
// Values below 220ns are raised to 220ns.
func WithPulseWidth(d time.Duration) Option {
	return func(c *Config) {
		c.Timing.PulseWidth = max(d, protocol.MinPulseWidth)
	}
}

// WithClockRate sets the pulse width from a clock frequency, with the clock
// high for half of each period. Frequencies above 2.27MHz are capped by
// the 220ns minimum pulse width.
//
// Example:
//
//	prog := doctor.New(bus, delay, doctor.WithClockRate(250*physic.KiloHertz))
func WithClockRate(f physic.Frequency) Option {
	return func(c *Config) {
		if f > 0 {
			c.Timing.PulseWidth = max(f.Period()/2, protocol.MinPulseWidth)
		}
	}
}

// WithPollTimeout bounds how long a fuse write may keep SDO low.
//
// Example:
//
//	prog := doctor.New(bus, delay, doctor.WithPollTimeout(500*time.Millisecond))
func WithPollTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timing.PollTimeout = d
		}
	}
}

// WithPollInterval sets the first and the largest wait between ready polls.
func WithPollInterval(minInterval, maxInterval time.Duration) Option {
	return func(c *Config) {
		if minInterval > 0 {
			c.Timing.PollMinInterval = minInterval
		}
		if maxInterval > 0 {
			c.Timing.PollMaxInterval = maxInterval
		}
	}
}

// WithPowerSettle sets the wait between VCC and 12V.
// The value is clamped to the 20-60µs window the target requires.
func WithPowerSettle(d time.Duration) Option {
	return func(c *Config) {
		c.PowerSettle = min(max(d, protocol.MinPowerSettle), protocol.MaxPowerSettle)
	}
}

// WithProgEnableHold sets how long SDI, SII and SDO stay low after 12V.
// Values below 10µs are raised to 10µs.
func WithProgEnableHold(d time.Duration) Option {
	return func(c *Config) {
		c.ProgEnableHold = max(d, protocol.MinProgEnableHold)
	}
}

// WithModeEntryDelay sets the wait between releasing SDO and the first
// instruction. Values below 300µs are raised to 300µs.
func WithModeEntryDelay(d time.Duration) Option {
	return func(c *Config) {
		c.ModeEntry = max(d, protocol.MinModeEntry)
	}
}

// WithPowerDownHold sets the wait between removing 12V and removing VCC.
// Values below 10µs are raised to 10µs.
func WithPowerDownHold(d time.Duration) Option {
	return func(c *Config) {
		c.PowerDownHold = max(d, protocol.MinPowerDownHold)
	}
}

// WithVerify enables or disables reading the fuses back after writing.
// Default is true.
//
// Example:
//
//	prog := doctor.New(bus, delay, doctor.WithVerify(false))
func WithVerify(verify bool) Option {
	return func(c *Config) {
		c.Verify = verify
	}
}
