package simtarget

import "github.com/moffa90/go-hvsp/protocol"

// Config holds the behaviour of a simulated target.
type Config struct {
	// Signature is returned by signature reads
	Signature protocol.Signature

	// Fuses are the initial low, high and extended fuse values
	Fuses [3]byte

	// BusyPolls is the number of SDO samples that read low after a fuse write
	BusyPolls int

	// StuckBusy keeps SDO low forever after a fuse write
	StuckBusy bool

	// Readback overrides the value returned by fuse reads
	Readback map[protocol.FuseKind]byte

	// Echo makes every frame shift out the data byte latched by the
	// previous frame instead of decoding commands
	Echo bool

	// Disconnected makes the target ignore every instruction, as if no
	// chip were in the socket
	Disconnected bool

	// LineErrors makes every access to a line fail
	LineErrors map[protocol.Line]error
}

func defaultConfig() Config {
	return Config{
		Fuses:     [3]byte{0x00, 0x00, 0x00},
		BusyPolls: 3,
	}
}

// Option configures a simulated target.
type Option func(*Config)

// WithFuses sets the initial fuse values.
func WithFuses(low, high, extended byte) Option {
	return func(c *Config) {
		c.Fuses = [3]byte{low, high, extended}
	}
}

// WithBusyPolls sets how many ready polls read low after each fuse write.
func WithBusyPolls(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.BusyPolls = n
		}
	}
}

// WithStuckBusy makes fuse writes never complete.
func WithStuckBusy() Option {
	return func(c *Config) {
		c.StuckBusy = true
	}
}

// WithReadback forces the value read back from a fuse, regardless of what
// was written.
func WithReadback(kind protocol.FuseKind, value byte) Option {
	return func(c *Config) {
		if c.Readback == nil {
			c.Readback = make(map[protocol.FuseKind]byte)
		}
		c.Readback[kind] = value
	}
}

// WithEcho turns the target into a one-frame delay line.
func WithEcho() Option {
	return func(c *Config) {
		c.Echo = true
	}
}

// WithDisconnected simulates an empty socket.
func WithDisconnected() Option {
	return func(c *Config) {
		c.Disconnected = true
	}
}

// WithLineError makes every access to line fail with err.
func WithLineError(line protocol.Line, err error) Option {
	return func(c *Config) {
		if c.LineErrors == nil {
			c.LineErrors = make(map[protocol.Line]error)
		}
		c.LineErrors[line] = err
	}
}
