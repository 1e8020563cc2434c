package gpiobus

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/moffa90/go-hvsp/doctor"
	"github.com/moffa90/go-hvsp/protocol"
)

func newTestPins(prefix string) map[protocol.Line]*gpiotest.Pin {
	pins := make(map[protocol.Line]*gpiotest.Pin, protocol.NumLines)
	for i, line := range protocol.Lines {
		pins[line] = &gpiotest.Pin{N: prefix + line.String(), Num: 100 + i}
	}
	return pins
}

func newTestBus(t *testing.T) (*Bus, map[protocol.Line]*gpiotest.Pin) {
	t.Helper()

	pins := newTestPins("TEST_")
	m := make(map[protocol.Line]gpio.PinIO, len(pins))
	for line, p := range pins {
		m[line] = p
	}
	bus, err := New(m)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return bus, pins
}

func TestNew(t *testing.T) {
	pins := newTestPins("NEW_")

	tests := []struct {
		name    string
		mutate  func(map[protocol.Line]gpio.PinIO)
		wantErr string
	}{
		{name: "all lines", mutate: func(map[protocol.Line]gpio.PinIO) {}},
		{
			name:    "missing line",
			mutate:  func(m map[protocol.Line]gpio.PinIO) { delete(m, protocol.Reset) },
			wantErr: "no pin for RST",
		},
		{
			name:    "nil pin",
			mutate:  func(m map[protocol.Line]gpio.PinIO) { m[protocol.Supply] = nil },
			wantErr: "no pin for VCC",
		},
		{
			name:    "shared pin",
			mutate:  func(m map[protocol.Line]gpio.PinIO) { m[protocol.DataIn] = m[protocol.Clock] },
			wantErr: "used for both",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := make(map[protocol.Line]gpio.PinIO)
			for line, p := range pins {
				m[line] = p
			}
			tt.mutate(m)

			_, err := New(m)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("New() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLevelRememberedWhileInput(t *testing.T) {
	bus, pins := newTestBus(t)
	reset := pins[protocol.Reset]
	reset.L = gpio.Low

	if err := bus.SetLevel(protocol.Reset, gpio.High); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if reset.L != gpio.Low {
		t.Error("SetLevel drove an input line")
	}

	if err := bus.SetDirection(protocol.Reset, protocol.Output); err != nil {
		t.Fatalf("SetDirection() error = %v", err)
	}
	if reset.L != gpio.High {
		t.Errorf("switching to output drove %s, want High", reset.L)
	}

	if err := bus.SetLevel(protocol.Reset, gpio.Low); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if reset.L != gpio.Low {
		t.Errorf("output level = %s, want Low", reset.L)
	}
}

func TestInputFloats(t *testing.T) {
	bus, pins := newTestBus(t)
	sdo := pins[protocol.DataOut]
	sdo.P = gpio.PullUp

	if err := bus.SetDirection(protocol.DataOut, protocol.Input); err != nil {
		t.Fatalf("SetDirection() error = %v", err)
	}
	if sdo.P != gpio.Float {
		t.Errorf("pull = %s, want Float", sdo.P)
	}

	for _, want := range []gpio.Level{gpio.High, gpio.Low} {
		sdo.L = want
		got, err := bus.ReadLevel(protocol.DataOut)
		if err != nil {
			t.Fatalf("ReadLevel() error = %v", err)
		}
		if got != want {
			t.Errorf("ReadLevel() = %s, want %s", got, want)
		}
	}
}

func TestInvalidLine(t *testing.T) {
	bus, _ := newTestBus(t)

	if err := bus.SetLevel(protocol.Line(9), gpio.High); err == nil {
		t.Error("SetLevel() on an unknown line expected error")
	}
	if err := bus.SetDirection(protocol.Line(-1), protocol.Output); err == nil {
		t.Error("SetDirection() on an unknown line expected error")
	}
	if err := bus.SetDirection(protocol.Clock, protocol.Direction(7)); err == nil {
		t.Error("SetDirection() with an unknown direction expected error")
	}
}

func TestClose(t *testing.T) {
	bus, pins := newTestBus(t)
	for _, line := range protocol.Lines {
		if err := bus.SetDirection(line, protocol.Output); err != nil {
			t.Fatalf("SetDirection(%s) error = %v", line, err)
		}
		pins[line].P = gpio.PullDown
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for _, line := range []protocol.Line{protocol.Clock, protocol.DataIn, protocol.InstructionIn, protocol.DataOut} {
		if pins[line].P != gpio.Float || bus.Direction(line) != protocol.Input {
			t.Errorf("%s not released", line)
		}
	}
}

func TestCloseKeepsHighVoltageOff(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testing.T, *Bus)
	}{
		{
			// Lines as a session leaves them after power-down
			name: "after session",
			setup: func(t *testing.T, bus *Bus) {
				for _, line := range protocol.Lines {
					level := gpio.Low
					if line == protocol.Reset {
						level = gpio.High
					}
					if err := bus.SetLevel(line, level); err != nil {
						t.Fatal(err)
					}
					if err := bus.SetDirection(line, protocol.Output); err != nil {
						t.Fatal(err)
					}
				}
			},
		},
		{
			// 12V and VCC still applied, e.g. a session aborted by a bus error
			name: "powered",
			setup: func(t *testing.T, bus *Bus) {
				for _, line := range protocol.Lines {
					level := gpio.Low
					if line == protocol.Supply {
						level = gpio.High
					}
					if err := bus.SetLevel(line, level); err != nil {
						t.Fatal(err)
					}
					if err := bus.SetDirection(line, protocol.Output); err != nil {
						t.Fatal(err)
					}
				}
			},
		},
		{
			name:  "never used",
			setup: func(*testing.T, *Bus) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus, pins := newTestBus(t)
			tt.setup(t, bus)

			if err := bus.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			if bus.Direction(protocol.Reset) != protocol.Output || pins[protocol.Reset].L != gpio.High {
				t.Errorf("RST: direction %s level %s, want driven high", bus.Direction(protocol.Reset), pins[protocol.Reset].L)
			}
			if bus.Direction(protocol.Supply) != protocol.Output || pins[protocol.Supply].L != gpio.Low {
				t.Errorf("VCC: direction %s level %s, want driven low", bus.Direction(protocol.Supply), pins[protocol.Supply].L)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	initHost = func() error { return nil }

	pins := newTestPins("OPEN_")
	for _, p := range pins {
		if err := gpioreg.Register(p); err != nil {
			t.Fatalf("Register(%s) error = %v", p, err)
		}
	}

	names := Pins{
		Clock:         "OPEN_SCI",
		DataIn:        "OPEN_SDI",
		InstructionIn: "OPEN_SII",
		DataOut:       "OPEN_SDO",
		Reset:         "OPEN_RST",
		Supply:        "OPEN_VCC",
	}
	bus, err := Open(names)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for _, line := range protocol.Lines {
		if bus.Pin(line) != gpio.PinIO(pins[line]) {
			t.Errorf("%s mapped to %s", line, bus.Pin(line))
		}
	}

	names.Supply = "NO_SUCH_PIN"
	if _, err := Open(names); err == nil || !strings.Contains(err.Error(), "VCC") {
		t.Errorf("Open() error = %v, want one naming VCC", err)
	}

	names.Supply = ""
	if _, err := Open(names); err == nil {
		t.Error("Open() with an empty pin name expected error")
	}
}

func TestOpenHostError(t *testing.T) {
	wantErr := errors.New("no drivers")
	initHost = func() error { return wantErr }
	defer func() { initHost = func() error { return nil } }()

	if _, err := Open(DefaultPins()); !errors.Is(err, wantErr) {
		t.Errorf("Open() error = %v, want %v", err, wantErr)
	}
}

// An empty socket reads back an all-zero signature; the session must still
// leave the supply off and the 12V switch open.
func TestSessionOnEmptySocket(t *testing.T) {
	bus, pins := newTestBus(t)
	prog := doctor.New(bus, SleepDelayer{})

	_, err := prog.Restore(context.Background())
	var ude *doctor.UnknownDeviceError
	if !errors.As(err, &ude) {
		t.Fatalf("Restore() error = %v, want *UnknownDeviceError", err)
	}

	if pins[protocol.Supply].L != gpio.Low {
		t.Error("VCC left on")
	}
	if pins[protocol.Reset].L != gpio.High {
		t.Error("12V left applied")
	}
	if pins[protocol.Clock].L != gpio.Low {
		t.Error("clock left high")
	}
}

func TestDelayers(t *testing.T) {
	tests := []struct {
		name  string
		delay protocol.Delayer
		d     time.Duration
	}{
		{name: "spin short", delay: SpinDelayer{}, d: 5 * time.Microsecond},
		{name: "spin long", delay: SpinDelayer{}, d: 300 * time.Microsecond},
		{name: "sleep", delay: SleepDelayer{}, d: time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			tt.delay.Delay(tt.d)
			if elapsed := time.Since(start); elapsed < tt.d {
				t.Errorf("Delay(%s) returned after %s", tt.d, elapsed)
			}
		})
	}
}
