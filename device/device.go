package device

import (
	"strings"

	"github.com/moffa90/go-hvsp/protocol"
)

// signature0 is the manufacturer byte shared by every Atmel AVR.
const signature0 = 0x1E

// Descriptor describes one supported target.
type Descriptor struct {
	// Name is the part name, e.g. "ATtiny85"
	Name string

	// Signature is the three byte device signature
	Signature protocol.Signature

	// Low is the factory low fuse byte
	Low byte

	// High is the factory high fuse byte
	High byte

	// Extended is the factory extended fuse byte (0 when the device has none)
	Extended byte
}

// Fuse is one fuse byte to program.
type Fuse struct {
	Kind  protocol.FuseKind
	Value byte
}

// HasExtended reports whether the device has an extended fuse byte.
func (d *Descriptor) HasExtended() bool {
	return d.Extended != 0
}

// Fuses returns the factory fuses in programming order: low, high, then
// extended if the device has one.
func (d *Descriptor) Fuses() []Fuse {
	fuses := []Fuse{
		{Kind: protocol.FuseLow, Value: d.Low},
		{Kind: protocol.FuseHigh, Value: d.High},
	}
	if d.HasExtended() {
		fuses = append(fuses, Fuse{Kind: protocol.FuseExtended, Value: d.Extended})
	}
	return fuses
}

// Default returns the factory value of one fuse byte.
// ok is false for the extended fuse of a device without one.
func (d *Descriptor) Default(kind protocol.FuseKind) (value byte, ok bool) {
	switch kind {
	case protocol.FuseLow:
		return d.Low, true
	case protocol.FuseHigh:
		return d.High, true
	case protocol.FuseExtended:
		return d.Extended, d.HasExtended()
	default:
		return 0, false
	}
}

func (d *Descriptor) String() string {
	return d.Name + " (" + d.Signature.String() + ")"
}

// table lists the supported targets in lookup order.
// See the device data sheets or avr-libc's io*.h for the default fuse values.
var table = []Descriptor{
	{
		Name:      "ATtiny13",
		Signature: protocol.Signature{signature0, 0x90, 0x07},
		Low:       0x6A,
		High:      0xFF,
		Extended:  0x00,
	},
	{
		Name:      "ATtiny24",
		Signature: protocol.Signature{signature0, 0x91, 0x0B},
		Low:       0x62,
		High:      0xDF,
		Extended:  0xFF,
	},
	{
		Name:      "ATtiny44",
		Signature: protocol.Signature{signature0, 0x92, 0x07},
		Low:       0x62,
		High:      0xDF,
		Extended:  0xFF,
	},
	{
		Name:      "ATtiny84",
		Signature: protocol.Signature{signature0, 0x93, 0x0C},
		Low:       0x62,
		High:      0xDF,
		Extended:  0xFF,
	},
	// The factory extended fuse of the ATtiny25 is 0xFF (SELFPRGEN
	// unprogrammed), but it is left alone on this part: never written or
	// verified.
	{
		Name:      "ATtiny25",
		Signature: protocol.Signature{signature0, 0x91, 0x08},
		Low:       0x62,
		High:      0xDF,
		Extended:  0x00,
	},
	{
		Name:      "ATtiny45",
		Signature: protocol.Signature{signature0, 0x92, 0x06},
		Low:       0x62,
		High:      0xDF,
		Extended:  0xFF,
	},
	{
		Name:      "ATtiny85",
		Signature: protocol.Signature{signature0, 0x93, 0x0B},
		Low:       0x62,
		High:      0xDF,
		Extended:  0xFF,
	},
	{
		Name:      "ATtiny2313",
		Signature: protocol.Signature{signature0, 0x91, 0x0A},
		Low:       0x64,
		High:      0xDF,
		Extended:  0xFF,
	},
}

// All returns a copy of the device table in lookup order.
func All() []Descriptor {
	return append([]Descriptor(nil), table...)
}

// Lookup returns the first descriptor whose signature equals sig.
// The all-zero signature never matches.
func Lookup(sig protocol.Signature) (*Descriptor, bool) {
	if sig.IsZero() {
		return nil, false
	}
	for i := range table {
		if table[i].Signature == sig {
			d := table[i]
			return &d, true
		}
	}
	return nil, false
}

// ByName returns the descriptor with the given part name (case-insensitive).
func ByName(name string) (*Descriptor, bool) {
	for i := range table {
		if strings.EqualFold(table[i].Name, name) {
			d := table[i]
			return &d, true
		}
	}
	return nil, false
}
