package protocol

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Conn is an HVSP connection to one target over a Bus.
//
// Conn is not safe for concurrent use.
type Conn struct {
	bus    Bus
	delay  Delayer
	timing Timing
	pulses int
}

// NewConn creates a Conn on the given bus.
// Zero Timing fields take their defaults and values below the protocol
// minimums are raised to them.
//
// Example:
//
//	conn := protocol.NewConn(bus, gpiobus.SpinDelayer{}, protocol.DefaultTiming())
func NewConn(bus Bus, delay Delayer, timing Timing) *Conn {
	if bus == nil {
		panic("bus cannot be nil")
	}
	if delay == nil {
		panic("delayer cannot be nil")
	}

	return &Conn{
		bus:    bus,
		delay:  delay,
		timing: timing.normalized(),
	}
}

// Timing returns the effective timing of the connection.
func (c *Conn) Timing() Timing {
	return c.timing
}

// Pulses returns the number of clock pulses issued so far.
func (c *Conn) Pulses() int {
	return c.pulses
}

// Wait delays for at least d.
func (c *Conn) Wait(d time.Duration) {
	if d > 0 {
		c.delay.Delay(d)
	}
}

// Configure sets the direction of a line.
func (c *Conn) Configure(line Line, dir Direction) error {
	if err := c.bus.SetDirection(line, dir); err != nil {
		return &BusError{Line: line, Op: "direction", Err: err}
	}
	return nil
}

// Drive sets the level of a line.
func (c *Conn) Drive(line Line, level gpio.Level) error {
	if err := c.bus.SetLevel(line, level); err != nil {
		return &BusError{Line: line, Op: "set", Err: err}
	}
	return nil
}

// Sample reads the level of a line.
func (c *Conn) Sample(line Line) (gpio.Level, error) {
	level, err := c.bus.ReadLevel(line)
	if err != nil {
		return gpio.Low, &BusError{Line: line, Op: "read", Err: err}
	}
	return level, nil
}

// pulse clocks one bit slot. It must only be called from Transfer.
func (c *Conn) pulse() error {
	if err := c.Drive(Clock, gpio.High); err != nil {
		return err
	}
	c.delay.Delay(c.timing.PulseWidth)
	if err := c.Drive(Clock, gpio.Low); err != nil {
		return err
	}
	c.pulses++
	return nil
}

// zeroInputs drives SDI and SII low for a start or stop slot.
func (c *Conn) zeroInputs() error {
	if err := c.Drive(DataIn, gpio.Low); err != nil {
		return err
	}
	return c.Drive(InstructionIn, gpio.Low)
}

// Transfer clocks one frame: data on SDI and instruction on SII, MSB first,
// and returns the byte the target shifted out on SDO during the frame.
//
// SDO must have been released to Input before the first transfer.
//
// Example:
//
//	// load the "read signature" command
//	_, err := conn.Transfer(protocol.CmdReadSignature, protocol.InstrLoadCommand)
func (c *Conn) Transfer(data, instruction byte) (byte, error) {
	// Start bit
	if err := c.zeroInputs(); err != nil {
		return 0, err
	}
	if err := c.pulse(); err != nil {
		return 0, err
	}

	var response byte
	for i := 0; i < DataBits; i++ {
		// SDO carries the bit shifted out by the previous pulse
		level, err := c.Sample(DataOut)
		if err != nil {
			return 0, err
		}
		response <<= 1
		if level == gpio.High {
			response |= 1
		}

		if err := c.Drive(DataIn, gpio.Level(data&0x80 != 0)); err != nil {
			return 0, err
		}
		if err := c.Drive(InstructionIn, gpio.Level(instruction&0x80 != 0)); err != nil {
			return 0, err
		}
		if err := c.pulse(); err != nil {
			return 0, err
		}

		data <<= 1
		instruction <<= 1
	}

	// Two stop bits
	if err := c.zeroInputs(); err != nil {
		return 0, err
	}
	if err := c.pulse(); err != nil {
		return 0, err
	}
	if err := c.pulse(); err != nil {
		return 0, err
	}

	return response, nil
}
