// Package simtarget simulates an AVR target in High-Voltage Serial Programming mode.
//
// A Target implements protocol.Bus and protocol.Delayer. It models the host
// side GPIO lines, the target's Prog_enable entry conditions and the HVSP
// shift registers at bit level on a virtual clock, so a programming session
// can run against it exactly as it would against hardware:
//
//	target := simtarget.New(protocol.Signature{0x1E, 0x91, 0x08})
//	prog := doctor.New(target, target)
//	report, err := prog.Restore(ctx)
//
// Every line change is recorded with its virtual timestamp (see Events) so
// tests can assert the electrical timing of a session.
package simtarget

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/moffa90/go-hvsp/protocol"
)

// Frame is one decoded 11-slot transfer.
type Frame struct {
	Data        byte
	Instruction byte
	Response    byte
}

// FuseWrite is one completed fuse programming operation.
type FuseWrite struct {
	Kind  protocol.FuseKind
	Value byte
}

// EventKind tells what an Event recorded.
type EventKind int

const (
	// LevelChange is a SetLevel call
	LevelChange EventKind = iota

	// DirectionChange is a SetDirection call
	DirectionChange
)

// Event is one host-side line change.
type Event struct {
	At        time.Duration
	Kind      EventKind
	Line      protocol.Line
	Level     gpio.Level
	Direction protocol.Direction
}

func (e Event) String() string {
	if e.Kind == DirectionChange {
		return fmt.Sprintf("%10s %s %s", e.At, e.Line, e.Direction)
	}
	return fmt.Sprintf("%10s %s %s", e.At, e.Line, e.Level)
}

// Target is a simulated HVSP target.
//
// Target is not safe for concurrent use.
type Target struct {
	config Config

	now time.Duration

	// host side
	dirs   [protocol.NumLines]protocol.Direction
	levels [protocol.NumLines]gpio.Level
	events []Event

	// target side
	powered     bool
	poweredAt   time.Duration
	hvApplied   bool
	hvAt        time.Duration
	hvOffAt     time.Duration
	progEnabled bool
	releasedAt  time.Duration
	released    bool

	fuses [3]byte

	slot     int
	inData   byte
	inInstr  byte
	out      byte
	pending  byte
	command  byte
	prevInst byte
	dataLow  byte
	address  byte
	busy     int

	frames  []Frame
	writes  []FuseWrite
	reads   []protocol.FuseKind
	pulses  int
	ignored int
	faults  []string
}

// New creates a powered-off target with the given signature.
func New(sig protocol.Signature, opts ...Option) *Target {
	cfg := defaultConfig()
	cfg.Signature = sig
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Target{config: cfg}
	t.fuses = cfg.Fuses
	return t
}

// Delay advances the virtual clock.
func (t *Target) Delay(d time.Duration) {
	if d > 0 {
		t.now += d
	}
}

// Now returns the virtual time since the target was created.
func (t *Target) Now() time.Duration {
	return t.now
}

// SetDirection implements protocol.Bus.
func (t *Target) SetDirection(line protocol.Line, dir protocol.Direction) error {
	if err := t.checkLine(line); err != nil {
		return err
	}

	t.events = append(t.events, Event{At: t.now, Kind: DirectionChange, Line: line, Direction: dir})
	prev := t.dirs[line]
	t.dirs[line] = dir

	if line == protocol.DataOut && prev == protocol.Output && dir == protocol.Input {
		t.releaseDataOut()
	}
	if dir == protocol.Output {
		t.drive(line, t.levels[line])
	}
	return nil
}

// SetLevel implements protocol.Bus.
func (t *Target) SetLevel(line protocol.Line, level gpio.Level) error {
	if err := t.checkLine(line); err != nil {
		return err
	}

	t.events = append(t.events, Event{At: t.now, Kind: LevelChange, Line: line, Level: level})
	prev := t.levels[line]
	t.levels[line] = level
	if t.dirs[line] != protocol.Output {
		return nil
	}
	if prev != level {
		t.drive(line, level)
	}
	return nil
}

// ReadLevel implements protocol.Bus.
func (t *Target) ReadLevel(line protocol.Line) (gpio.Level, error) {
	if err := t.checkLine(line); err != nil {
		return gpio.Low, err
	}

	if t.dirs[line] == protocol.Output {
		return t.levels[line], nil
	}
	if line != protocol.DataOut || !t.ready() {
		return gpio.Low, nil
	}

	if t.slot > 0 {
		return t.frameBit(), nil
	}
	if t.config.StuckBusy {
		return gpio.Low, nil
	}
	if t.busy > 0 {
		t.busy--
		return gpio.Low, nil
	}
	return gpio.High, nil
}

func (t *Target) checkLine(line protocol.Line) error {
	if line < protocol.Clock || line > protocol.Supply {
		return fmt.Errorf("simtarget: no such line %d", int(line))
	}
	if err, ok := t.config.LineErrors[line]; ok {
		return err
	}
	return nil
}

// drive reacts to an effective level change on a host output.
func (t *Target) drive(line protocol.Line, level gpio.Level) {
	switch line {
	case protocol.Supply:
		if level == gpio.High && !t.powered {
			t.powered = true
			t.poweredAt = t.now
		} else if level == gpio.Low && t.powered {
			t.powerOff()
		}

	case protocol.Reset:
		// Inverted through the high-voltage switch
		if level == gpio.Low && !t.hvApplied {
			t.applyHighVoltage()
		} else if level == gpio.High && t.hvApplied {
			t.hvApplied = false
			t.hvOffAt = t.now
			t.exitProgramming()
		}

	case protocol.Clock:
		if level == gpio.High {
			t.risingEdge()
		}
	}
}

func (t *Target) applyHighVoltage() {
	t.hvApplied = true
	t.hvAt = t.now
	if !t.powered {
		t.fault("high voltage applied without VCC")
		return
	}

	settle := t.now - t.poweredAt
	if settle < protocol.MinPowerSettle || settle > protocol.MaxPowerSettle {
		t.fault(fmt.Sprintf("high voltage applied %s after VCC, want %s-%s",
			settle, protocol.MinPowerSettle, protocol.MaxPowerSettle))
		return
	}

	for _, l := range []protocol.Line{protocol.DataIn, protocol.InstructionIn, protocol.DataOut} {
		if t.dirs[l] != protocol.Output || t.levels[l] != gpio.Low {
			t.fault(fmt.Sprintf("Prog_enable: %s not driven low", l))
			return
		}
	}

	t.progEnabled = true
}

func (t *Target) releaseDataOut() {
	if !t.progEnabled || t.released {
		return
	}
	if hold := t.now - t.hvAt; hold < protocol.MinProgEnableHold {
		t.fault(fmt.Sprintf("SDO released %s after high voltage, want >= %s", hold, protocol.MinProgEnableHold))
		t.progEnabled = false
		return
	}
	t.released = true
	t.releasedAt = t.now
}

func (t *Target) exitProgramming() {
	t.progEnabled = false
	t.released = false
	t.slot = 0
	t.pending = 0
	t.busy = 0
	t.command = 0
}

func (t *Target) powerOff() {
	t.powered = false
	switch {
	case t.hvApplied:
		t.fault("VCC removed with high voltage applied")
	case t.hvOffAt > 0 && t.now-t.hvOffAt < protocol.MinPowerDownHold:
		t.fault(fmt.Sprintf("VCC removed %s after high voltage, want >= %s",
			t.now-t.hvOffAt, protocol.MinPowerDownHold))
	}
	t.exitProgramming()
}

// ready reports whether the target accepts serial instructions.
func (t *Target) ready() bool {
	return !t.config.Disconnected && t.powered && t.progEnabled && t.released &&
		t.now-t.releasedAt >= protocol.MinModeEntry
}

func (t *Target) fault(msg string) {
	t.faults = append(t.faults, fmt.Sprintf("%s: %s", t.now, msg))
}

func (t *Target) risingEdge() {
	t.pulses++
	if !t.ready() {
		t.ignored++
		return
	}

	t.slot++
	sdi := t.inputBit(protocol.DataIn)
	sii := t.inputBit(protocol.InstructionIn)

	switch {
	case t.slot == 1:
		// Start bit; load the output register for this frame
		t.inData, t.inInstr = 0, 0
		t.out = t.pending
		t.pending = 0
	case t.slot <= 1+protocol.DataBits:
		t.inData = t.inData<<1 | sdi
		t.inInstr = t.inInstr<<1 | sii
	case t.slot == protocol.FrameSlots:
		t.slot = 0
		t.execute(t.inData, t.inInstr)
		t.frames = append(t.frames, Frame{Data: t.inData, Instruction: t.inInstr, Response: t.out})
	}
}

func (t *Target) inputBit(line protocol.Line) byte {
	if t.dirs[line] == protocol.Output && t.levels[line] == gpio.High {
		return 1
	}
	return 0
}

// frameBit is the SDO level inside a frame: after pulse k the target
// presents bit 8-k of its output register.
func (t *Target) frameBit() gpio.Level {
	if t.slot > protocol.DataBits {
		return gpio.High
	}
	return gpio.Level((t.out>>uint(protocol.DataBits-t.slot))&1 == 1)
}

func (t *Target) execute(data, instr byte) {
	prev := t.prevInst
	t.prevInst = instr

	if t.config.Echo {
		t.pending = data
		return
	}

	switch instr {
	case protocol.InstrLoadCommand:
		t.command = data
		return
	case protocol.InstrLoadAddressLow:
		t.address = data
		return
	case protocol.InstrLoadDataLow:
		t.dataLow = data
		return
	}

	switch t.command {
	case protocol.CmdReadSignature:
		if instr == protocol.InstrReadSetup {
			if int(t.address) < protocol.SignatureSize {
				t.pending = t.config.Signature[t.address]
			} else {
				t.pending = 0xFF
			}
		}

	case protocol.CmdWriteFuse:
		switch {
		case prev == 0x64 && instr == 0x6C:
			t.program(protocol.FuseLow)
		case prev == 0x74 && instr == 0x7C:
			t.program(protocol.FuseHigh)
		case prev == 0x66 && instr == 0x6E:
			t.program(protocol.FuseExtended)
		}

	case protocol.CmdReadFuse:
		switch instr {
		case 0x68:
			t.prepareRead(protocol.FuseLow)
		case 0x7A:
			t.prepareRead(protocol.FuseHigh)
		case 0x6A:
			t.prepareRead(protocol.FuseExtended)
		}
	}
}

func (t *Target) program(kind protocol.FuseKind) {
	t.fuses[kind] = t.dataLow
	t.writes = append(t.writes, FuseWrite{Kind: kind, Value: t.dataLow})
	t.busy = t.config.BusyPolls
}

func (t *Target) prepareRead(kind protocol.FuseKind) {
	t.reads = append(t.reads, kind)
	if v, ok := t.config.Readback[kind]; ok {
		t.pending = v
		return
	}
	t.pending = t.fuses[kind]
}

// Fuse returns the current value of a fuse byte.
func (t *Target) Fuse(kind protocol.FuseKind) byte {
	return t.fuses[kind]
}

// Writes returns the completed fuse writes in order.
func (t *Target) Writes() []FuseWrite {
	return append([]FuseWrite(nil), t.writes...)
}

// Reads returns the fuse reads in order.
func (t *Target) Reads() []protocol.FuseKind {
	return append([]protocol.FuseKind(nil), t.reads...)
}

// Frames returns every frame decoded while the target was ready.
func (t *Target) Frames() []Frame {
	return append([]Frame(nil), t.frames...)
}

// Pulses returns the number of rising clock edges seen, ready or not.
func (t *Target) Pulses() int {
	return t.pulses
}

// IgnoredPulses returns the number of rising clock edges seen while the
// target was not accepting instructions.
func (t *Target) IgnoredPulses() int {
	return t.ignored
}

// Faults returns protocol violations observed by the target.
func (t *Target) Faults() []string {
	return append([]string(nil), t.faults...)
}

// Events returns the recorded host-side line changes.
func (t *Target) Events() []Event {
	return append([]Event(nil), t.events...)
}

// FirstEvent returns the first event after from that matches.
func (t *Target) FirstEvent(from time.Duration, match func(Event) bool) (Event, bool) {
	for _, e := range t.events {
		if e.At >= from && match(e) {
			return e, true
		}
	}
	return Event{}, false
}

// Powered reports whether VCC is applied.
func (t *Target) Powered() bool {
	return t.powered
}

// HighVoltage reports whether 12V is applied to RESET.
func (t *Target) HighVoltage() bool {
	return t.hvApplied
}

// Direction returns the host-side direction of a line.
func (t *Target) Direction(line protocol.Line) protocol.Direction {
	return t.dirs[line]
}

// Level returns the last level set on a line.
func (t *Target) Level(line protocol.Line) gpio.Level {
	return t.levels[line]
}

// Reset clears the recorded history and powers the target off without
// touching fuse values.
func (t *Target) Reset() {
	fuses := t.fuses
	*t = Target{config: t.config, fuses: fuses}
}
