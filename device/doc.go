// Package device holds the table of supported AVR targets and their factory
// fuse defaults.
//
// # Device Table
//
// The table is compiled in and ordered. Each entry carries the three byte
// signature read from the target and the low, high and extended fuse values
// a blank chip ships with. An extended default of 0 marks a device without
// an extended fuse byte.
//
//	ATtiny13    1E 90 07  low=6A high=FF
//	ATtiny25    1E 91 08  low=62 high=DF
//	ATtiny85    1E 93 0B  low=62 high=DF ext=FF
//
// # Usage
//
// Look up a signature read from a target:
//
//	d, ok := device.Lookup(protocol.Signature{0x1E, 0x93, 0x0B})
//	if !ok {
//	    return errors.New("unknown device")
//	}
//
//	for _, f := range d.Fuses() {
//	    fmt.Printf("%s fuse: 0x%02X\n", f.Kind, f.Value)
//	}
//
// Adding a device means appending one Descriptor to the table. Signatures
// must be unique; the table is scanned in order and the first match wins.
package device
