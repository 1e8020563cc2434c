// Package protocol implements the AVR High-Voltage Serial Programming (HVSP) protocol.
//
// HVSP is a synchronous, bit-banged protocol carried on four logic lines:
//
//	SCI  Serial Clock Input        (host -> target)
//	SDI  Serial Data Input         (host -> target)
//	SII  Serial Instruction Input  (host -> target)
//	SDO  Serial Data Output        (target -> host)
//
// plus two power-control lines driven by the host: the target supply (VCC)
// and the switch that applies 12V to the target's RESET pin.
//
// # Frame Format
//
// Every exchange with the target is an 11 clock pulse frame:
//
//	slot:  0      1  2  3  4  5  6  7  8   9     10
//	SDI:   0     d7 d6 d5 d4 d3 d2 d1 d0   0     0
//	SII:   0     i7 i6 i5 i4 i3 i2 i1 i0   0     0
//	SDO:         r7 r6 r5 r4 r3 r2 r1 r0
//
// The response bit on SDO is sampled before the pulse that clocks the next
// data/instruction bit in, so the target's output runs one pulse behind the
// input.
//
// # Hardware Abstraction
//
// This package does NOT drive hardware. Callers provide a Bus that can set
// direction and level of each named Line and read it back, and a Delayer
// that waits for at least a given duration:
//
//	conn := protocol.NewConn(bus, delayer, protocol.DefaultTiming())
//	sig, err := conn.ReadSignature()
//
// The gpiobus package provides a Bus on periph.io GPIO pins; the simtarget
// package provides a simulated target for tests.
//
// # Command Sequences
//
// Conn exposes the sequences needed to restore fuses:
//
//	conn.ReadSignatureByte(i)         // 4 transfers
//	conn.WriteFuse(protocol.FuseLow, 0x62)
//	conn.ReadFuse(protocol.FuseHigh)
//
// Fuse writes wait for the target to release SDO. That wait is bounded by
// Timing.PollTimeout and fails with a *TargetUnresponsiveError.
package protocol
