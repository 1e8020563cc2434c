package protocol_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/moffa90/go-hvsp/protocol"
	"github.com/moffa90/go-hvsp/simtarget"
)

// enterProgramming runs the Prog_enable sequence against a simulated target.
func enterProgramming(t *testing.T, target *simtarget.Target, timing protocol.Timing) *protocol.Conn {
	t.Helper()

	conn := protocol.NewConn(target, target, timing)
	initial := map[protocol.Line]gpio.Level{
		protocol.Clock:         gpio.Low,
		protocol.DataIn:        gpio.Low,
		protocol.InstructionIn: gpio.Low,
		protocol.DataOut:       gpio.Low,
		protocol.Reset:         gpio.High,
		protocol.Supply:        gpio.Low,
	}
	for _, line := range protocol.Lines {
		if err := conn.Drive(line, initial[line]); err != nil {
			t.Fatalf("Drive(%s) error = %v", line, err)
		}
		if err := conn.Configure(line, protocol.Output); err != nil {
			t.Fatalf("Configure(%s) error = %v", line, err)
		}
	}

	steps := []func() error{
		func() error { return conn.Drive(protocol.Supply, gpio.High) },
		func() error { conn.Wait(60 * time.Microsecond); return nil },
		func() error { return conn.Drive(protocol.Reset, gpio.Low) },
		func() error { conn.Wait(20 * time.Microsecond); return nil },
		func() error { return conn.Configure(protocol.DataOut, protocol.Input) },
		func() error { conn.Wait(300 * time.Microsecond); return nil },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("enter programming: %v", err)
		}
	}

	if faults := target.Faults(); len(faults) > 0 {
		t.Fatalf("target faults: %v", faults)
	}
	return conn
}

func TestTransferRoundTrip(t *testing.T) {
	target := simtarget.New(protocol.Signature{}, simtarget.WithEcho())
	conn := enterProgramming(t, target, protocol.DefaultTiming())

	for b := 0; b < 256; b++ {
		if _, err := conn.Transfer(byte(b), 0x00); err != nil {
			t.Fatalf("Transfer(0x%02X) error = %v", b, err)
		}
		got, err := conn.Transfer(0x00, 0x00)
		if err != nil {
			t.Fatalf("Transfer(0x00) error = %v", err)
		}
		if got != byte(b) {
			t.Fatalf("echo of 0x%02X = 0x%02X", b, got)
		}
	}

	if target.Pulses() != 512*protocol.FrameSlots {
		t.Errorf("target saw %d pulses, want %d", target.Pulses(), 512*protocol.FrameSlots)
	}
}

func TestReadSignatureByte(t *testing.T) {
	sig := protocol.Signature{0x1E, 0x91, 0x08}
	target := simtarget.New(sig)
	conn := enterProgramming(t, target, protocol.DefaultTiming())

	for i := 0; i < protocol.SignatureSize; i++ {
		got, err := conn.ReadSignatureByte(i)
		if err != nil {
			t.Fatalf("ReadSignatureByte(%d) error = %v", i, err)
		}
		if got != sig[i] {
			t.Errorf("ReadSignatureByte(%d) = 0x%02X, want 0x%02X", i, got, sig[i])
		}
	}

	frames := target.Frames()
	if len(frames) != 4*protocol.SignatureSize {
		t.Fatalf("frames = %d, want %d", len(frames), 4*protocol.SignatureSize)
	}

	// data/instruction pairs of the second read
	want := []simtarget.Frame{
		{Data: 0x08, Instruction: 0x4C},
		{Data: 0x01, Instruction: 0x0C},
		{Data: 0x00, Instruction: 0x68},
		{Data: 0x00, Instruction: 0x6C, Response: 0x91},
	}
	for i, w := range want {
		if got := frames[4+i]; got != w {
			t.Errorf("frame %d = %+v, want %+v", 4+i, got, w)
		}
	}
}

func TestReadSignatureByteInvalidIndex(t *testing.T) {
	target := simtarget.New(protocol.Signature{0x1E, 0x91, 0x08})
	conn := protocol.NewConn(target, target, protocol.DefaultTiming())

	for _, idx := range []int{-1, 3, 255} {
		if _, err := conn.ReadSignatureByte(idx); err == nil {
			t.Errorf("ReadSignatureByte(%d) expected error", idx)
		}
	}
	if target.Pulses() != 0 {
		t.Errorf("invalid index issued %d pulses", target.Pulses())
	}
}

func TestReadSignature(t *testing.T) {
	want := protocol.Signature{0x1E, 0x93, 0x0B}
	target := simtarget.New(want)
	conn := enterProgramming(t, target, protocol.DefaultTiming())

	got, err := conn.ReadSignature()
	if err != nil {
		t.Fatalf("ReadSignature() error = %v", err)
	}
	if got != want {
		t.Errorf("ReadSignature() = %s, want %s", got, want)
	}
}

func TestWriteFuse(t *testing.T) {
	tests := []struct {
		kind    protocol.FuseKind
		value   byte
		strobeA byte
		strobeB byte
	}{
		{kind: protocol.FuseLow, value: 0x62, strobeA: 0x64, strobeB: 0x6C},
		{kind: protocol.FuseHigh, value: 0xDF, strobeA: 0x74, strobeB: 0x7C},
		{kind: protocol.FuseExtended, value: 0xFF, strobeA: 0x66, strobeB: 0x6E},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			target := simtarget.New(protocol.Signature{0x1E, 0x91, 0x08}, simtarget.WithBusyPolls(5))
			conn := enterProgramming(t, target, protocol.DefaultTiming())

			if err := conn.WriteFuse(tt.kind, tt.value); err != nil {
				t.Fatalf("WriteFuse() error = %v", err)
			}

			if got := target.Fuse(tt.kind); got != tt.value {
				t.Errorf("fuse = 0x%02X, want 0x%02X", got, tt.value)
			}

			want := []simtarget.Frame{
				{Data: 0x40, Instruction: 0x4C},
				{Data: tt.value, Instruction: 0x2C},
				{Data: 0x00, Instruction: tt.strobeA},
				{Data: 0x00, Instruction: tt.strobeB},
				{Data: 0x00, Instruction: 0x4C},
			}
			frames := target.Frames()
			if len(frames) != len(want) {
				t.Fatalf("frames = %+v, want %+v", frames, want)
			}
			for i := range want {
				if frames[i] != want[i] {
					t.Errorf("frame %d = %+v, want %+v", i, frames[i], want[i])
				}
			}
		})
	}
}

func TestReadFuse(t *testing.T) {
	tests := []struct {
		kind    protocol.FuseKind
		selectA byte
		readB   byte
		want    byte
	}{
		{kind: protocol.FuseLow, selectA: 0x68, readB: 0x6C, want: 0x6A},
		{kind: protocol.FuseHigh, selectA: 0x7A, readB: 0x7E, want: 0xFF},
		{kind: protocol.FuseExtended, selectA: 0x6A, readB: 0x6E, want: 0xF9},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			target := simtarget.New(protocol.Signature{0x1E, 0x90, 0x07}, simtarget.WithFuses(0x6A, 0xFF, 0xF9))
			conn := enterProgramming(t, target, protocol.DefaultTiming())

			got, err := conn.ReadFuse(tt.kind)
			if err != nil {
				t.Fatalf("ReadFuse() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadFuse() = 0x%02X, want 0x%02X", got, tt.want)
			}

			frames := target.Frames()
			want := []simtarget.Frame{
				{Data: 0x04, Instruction: 0x4C},
				{Data: 0x00, Instruction: tt.selectA},
				{Data: 0x00, Instruction: tt.readB, Response: tt.want},
			}
			if len(frames) != len(want) {
				t.Fatalf("frames = %+v, want %+v", frames, want)
			}
			for i := range want {
				if frames[i] != want[i] {
					t.Errorf("frame %d = %+v, want %+v", i, frames[i], want[i])
				}
			}
		})
	}
}

func TestWriteThenReadFuse(t *testing.T) {
	target := simtarget.New(protocol.Signature{0x1E, 0x92, 0x06}, simtarget.WithFuses(0xFF, 0xFF, 0xFF))
	conn := enterProgramming(t, target, protocol.DefaultTiming())

	values := map[protocol.FuseKind]byte{
		protocol.FuseLow:      0x62,
		protocol.FuseHigh:     0xDF,
		protocol.FuseExtended: 0xFE,
	}
	for _, kind := range protocol.FuseKinds {
		if err := conn.WriteFuse(kind, values[kind]); err != nil {
			t.Fatalf("WriteFuse(%s) error = %v", kind, err)
		}
	}
	for _, kind := range protocol.FuseKinds {
		got, err := conn.ReadFuse(kind)
		if err != nil {
			t.Fatalf("ReadFuse(%s) error = %v", kind, err)
		}
		if got != values[kind] {
			t.Errorf("ReadFuse(%s) = 0x%02X, want 0x%02X", kind, got, values[kind])
		}
	}
}

func TestWriteFuseUnresponsive(t *testing.T) {
	target := simtarget.New(protocol.Signature{0x1E, 0x91, 0x08}, simtarget.WithStuckBusy())
	conn := enterProgramming(t, target, protocol.Timing{PollTimeout: 5 * time.Millisecond})

	start := target.Now()
	err := conn.WriteFuse(protocol.FuseHigh, 0xDF)
	if !errors.Is(err, protocol.ErrTargetUnresponsive) {
		t.Fatalf("WriteFuse() error = %v, want ErrTargetUnresponsive", err)
	}

	var tue *protocol.TargetUnresponsiveError
	if !errors.As(err, &tue) {
		t.Fatalf("error %T is not *TargetUnresponsiveError", err)
	}
	if tue.Fuse != protocol.FuseHigh {
		t.Errorf("Fuse = %s, want high", tue.Fuse)
	}
	if !strings.Contains(err.Error(), "high fuse") {
		t.Errorf("error %q does not name the fuse", err)
	}

	// bounded: the poll gave up shortly after the timeout
	if elapsed := target.Now() - start; elapsed > 10*time.Millisecond {
		t.Errorf("poll took %s of virtual time", elapsed)
	}
}

func TestWriteFuseUnknownKind(t *testing.T) {
	target := simtarget.New(protocol.Signature{})
	conn := protocol.NewConn(target, target, protocol.DefaultTiming())

	if err := conn.WriteFuse(protocol.FuseKind(7), 0x00); err == nil {
		t.Error("WriteFuse() expected error for unknown kind")
	}
	if _, err := conn.ReadFuse(protocol.FuseKind(7)); err == nil {
		t.Error("ReadFuse() expected error for unknown kind")
	}
}
