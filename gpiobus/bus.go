// Package gpiobus drives the HVSP lines from host GPIO pins through periph.io.
//
// Example:
//
//	bus, err := gpiobus.Open(gpiobus.DefaultPins())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bus.Close()
//
//	prog := doctor.New(bus, gpiobus.SpinDelayer{})
package gpiobus

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/moffa90/go-hvsp/protocol"
)

// Pins names the GPIO pin behind each HVSP line, as known to gpioreg
// (for example "GPIO17" on a Raspberry Pi).
type Pins struct {
	Clock         string
	DataIn        string
	InstructionIn string
	DataOut       string
	Reset         string
	Supply        string
}

// DefaultPins returns the Raspberry Pi wiring of the reference board.
func DefaultPins() Pins {
	return Pins{
		Clock:         "GPIO17",
		DataIn:        "GPIO27",
		InstructionIn: "GPIO22",
		DataOut:       "GPIO23",
		Reset:         "GPIO24",
		Supply:        "GPIO25",
	}
}

func (p Pins) byLine() map[protocol.Line]string {
	return map[protocol.Line]string{
		protocol.Clock:         p.Clock,
		protocol.DataIn:        p.DataIn,
		protocol.InstructionIn: p.InstructionIn,
		protocol.DataOut:       p.DataOut,
		protocol.Reset:         p.Reset,
		protocol.Supply:        p.Supply,
	}
}

var hostInitialized atomic.Bool

// initHost loads the periph host drivers once per process.
var initHost = func() error {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			hostInitialized.Store(false)
			return fmt.Errorf("host initialization failed: %w", err)
		}
	}
	return nil
}

// OpenPin resolves a single pin by name after initializing the host drivers.
func OpenPin(name string) (gpio.PinIO, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("gpiobus: empty pin name")
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpiobus: no pin named %q", name)
	}
	return p, nil
}

// Open resolves every line of pins and returns a Bus driving them.
// All lines start as inputs.
func Open(pins Pins) (*Bus, error) {
	names := pins.byLine()
	resolved := make(map[protocol.Line]gpio.PinIO, len(names))
	for _, line := range protocol.Lines {
		p, err := OpenPin(names[line])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", line, err)
		}
		resolved[line] = p
	}
	return New(resolved)
}

// Bus implements protocol.Bus on periph.io GPIO pins.
//
// Bus is not safe for concurrent use; the doctor.Programmer serializes
// access to it.
type Bus struct {
	pins   [protocol.NumLines]gpio.PinIO
	levels [protocol.NumLines]gpio.Level
	dirs   [protocol.NumLines]protocol.Direction
}

// New creates a Bus from already opened pins. Every line must be present
// and no pin may serve two lines.
func New(pins map[protocol.Line]gpio.PinIO) (*Bus, error) {
	b := &Bus{}
	seen := make(map[gpio.PinIO]protocol.Line)
	for _, line := range protocol.Lines {
		p, ok := pins[line]
		if !ok || p == nil {
			return nil, fmt.Errorf("gpiobus: no pin for %s", line)
		}
		if other, dup := seen[p]; dup {
			return nil, fmt.Errorf("gpiobus: pin %s used for both %s and %s", p, other, line)
		}
		seen[p] = line
		b.pins[line] = p
		b.dirs[line] = protocol.Input
	}
	return b, nil
}

// Pin returns the pin behind a line.
func (b *Bus) Pin(line protocol.Line) gpio.PinIO {
	return b.pins[line]
}

// SetDirection implements protocol.Bus. Switching to output drives the last
// level set on the line.
func (b *Bus) SetDirection(line protocol.Line, dir protocol.Direction) error {
	p, err := b.pin(line)
	if err != nil {
		return err
	}

	switch dir {
	case protocol.Input:
		err = p.In(gpio.Float, gpio.NoEdge)
	case protocol.Output:
		err = p.Out(b.levels[line])
	default:
		return fmt.Errorf("gpiobus: invalid direction %d", int(dir))
	}
	if err != nil {
		return err
	}
	b.dirs[line] = dir
	return nil
}

// SetLevel implements protocol.Bus. On an input line the level is only
// remembered.
func (b *Bus) SetLevel(line protocol.Line, level gpio.Level) error {
	p, err := b.pin(line)
	if err != nil {
		return err
	}

	b.levels[line] = level
	if b.dirs[line] != protocol.Output {
		return nil
	}
	return p.Out(level)
}

// ReadLevel implements protocol.Bus.
func (b *Bus) ReadLevel(line protocol.Line) (gpio.Level, error) {
	p, err := b.pin(line)
	if err != nil {
		return gpio.Low, err
	}
	return p.Read(), nil
}

// Close leaves the target in its idle state: Reset driven high so the
// 12V switch stays off, Supply driven low, and the serial lines released
// to high impedance. Every step is attempted.
func (b *Bus) Close() error {
	var errs []error
	hold := func(line protocol.Line, level gpio.Level) {
		if err := b.SetLevel(line, level); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", line, err))
			return
		}
		if err := b.SetDirection(line, protocol.Output); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", line, err))
		}
	}
	hold(protocol.Reset, gpio.High)
	hold(protocol.Supply, gpio.Low)

	for _, line := range []protocol.Line{protocol.Clock, protocol.DataIn, protocol.InstructionIn, protocol.DataOut} {
		if err := b.SetDirection(line, protocol.Input); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", line, err))
		}
	}
	return errors.Join(errs...)
}

// Direction returns the current direction of a line.
func (b *Bus) Direction(line protocol.Line) protocol.Direction {
	return b.dirs[line]
}

func (b *Bus) pin(line protocol.Line) (gpio.PinIO, error) {
	if line < 0 || int(line) >= len(b.pins) {
		return nil, fmt.Errorf("gpiobus: no such line %d", int(line))
	}
	return b.pins[line], nil
}
