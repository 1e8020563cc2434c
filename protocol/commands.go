package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"periph.io/x/conn/v3/gpio"
)

// ReadSignatureByte reads one signature byte (index 0 to 2).
//
// Sequence (data/instruction):
//
//	0x08/0x4C  load command "read signature"
//	idx /0x0C  load address
//	0x00/0x68  read setup
//	0x00/0x6C  read out
func (c *Conn) ReadSignatureByte(index int) (byte, error) {
	if index < 0 || index >= SignatureSize {
		return 0, fmt.Errorf("signature index must be 0-%d, got %d", SignatureSize-1, index)
	}

	if _, err := c.Transfer(CmdReadSignature, InstrLoadCommand); err != nil {
		return 0, err
	}
	if _, err := c.Transfer(byte(index), InstrLoadAddressLow); err != nil {
		return 0, err
	}
	if _, err := c.Transfer(0x00, InstrReadSetup); err != nil {
		return 0, err
	}

	return c.Transfer(0x00, InstrReadOut)
}

// ReadSignature reads all three signature bytes.
func (c *Conn) ReadSignature() (Signature, error) {
	var sig Signature
	for i := range sig {
		b, err := c.ReadSignatureByte(i)
		if err != nil {
			return Signature{}, fmt.Errorf("read signature byte %d: %w", i, err)
		}
		sig[i] = b
	}
	return sig, nil
}

// WriteFuse programs one fuse byte and waits for the target to finish.
//
// Sequence (data/instruction):
//
//	0x40 /0x4C  load command "write fuse"
//	value/0x2C  load data
//	0x00 /A     write strobe
//	0x00 /B     write strobe end
//	            poll SDO high
//	0x00 /0x4C  load command "no operation"
//	            poll SDO high
//
// A/B depend on the fuse: low 0x64/0x6C, high 0x74/0x7C, extended 0x66/0x6E.
//
// The second poll after the trailing no-operation command mirrors the
// sequence used by existing HVSP programmers.
func (c *Conn) WriteFuse(kind FuseKind, value byte) error {
	cmds, ok := fuseTable[kind]
	if !ok {
		return fmt.Errorf("unknown fuse kind %d", int(kind))
	}

	if _, err := c.Transfer(CmdWriteFuse, InstrLoadCommand); err != nil {
		return err
	}
	if _, err := c.Transfer(value, InstrLoadDataLow); err != nil {
		return err
	}
	if _, err := c.Transfer(0x00, cmds.writeA); err != nil {
		return err
	}
	if _, err := c.Transfer(0x00, cmds.writeB); err != nil {
		return err
	}

	if err := c.pollFuse(kind); err != nil {
		return err
	}

	if _, err := c.Transfer(CmdNoOperation, InstrLoadCommand); err != nil {
		return err
	}

	return c.pollFuse(kind)
}

// ReadFuse reads one fuse byte.
//
// Sequence (data/instruction):
//
//	0x04/0x4C  load command "read fuse"
//	0x00/A     select fuse
//	0x00/B     read out
//
// A/B depend on the fuse: low 0x68/0x6C, high 0x7A/0x7E, extended 0x6A/0x6E.
func (c *Conn) ReadFuse(kind FuseKind) (byte, error) {
	cmds, ok := fuseTable[kind]
	if !ok {
		return 0, fmt.Errorf("unknown fuse kind %d", int(kind))
	}

	if _, err := c.Transfer(CmdReadFuse, InstrLoadCommand); err != nil {
		return 0, err
	}
	if _, err := c.Transfer(0x00, cmds.readA); err != nil {
		return 0, err
	}

	return c.Transfer(0x00, cmds.readB)
}

// PollReady waits until the target drives SDO high.
//
// SDO is re-sampled at exponentially growing intervals between
// Timing.PollMinInterval and Timing.PollMaxInterval. When the accumulated
// wait reaches Timing.PollTimeout a *TargetUnresponsiveError is returned.
func (c *Conn) PollReady() error {
	b := &backoff.Backoff{
		Min:    c.timing.PollMinInterval,
		Max:    c.timing.PollMaxInterval,
		Factor: 2,
	}

	var waited time.Duration
	for {
		level, err := c.Sample(DataOut)
		if err != nil {
			return err
		}
		if level == gpio.High {
			return nil
		}
		if waited >= c.timing.PollTimeout {
			return &TargetUnresponsiveError{Waited: waited}
		}

		d := b.Duration()
		c.delay.Delay(d)
		waited += d
	}
}

// pollFuse is PollReady with the fuse recorded on timeout.
func (c *Conn) pollFuse(kind FuseKind) error {
	err := c.PollReady()

	var tue *TargetUnresponsiveError
	if errors.As(err, &tue) {
		tue.Fuse = kind
	}
	return err
}
