package gpiobus

import (
	"time"

	"periph.io/x/host/v3/cpu"
)

// spinChunk is the longest single busy loop cpu.Nanospin is accurate for.
const spinChunk = 10 * time.Microsecond

// SpinDelayer busy-waits. It keeps the microsecond delays of the HVSP entry
// sequence inside their windows, at the cost of a CPU core.
type SpinDelayer struct{}

// Delay implements protocol.Delayer.
func (SpinDelayer) Delay(d time.Duration) {
	deadline := time.Now().Add(d)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return
		}
		cpu.Nanospin(min(left, spinChunk))
	}
}

// SleepDelayer yields to the scheduler. Delays can overshoot by tens of
// microseconds, which may break the 20-60µs VCC to 12V window on a loaded
// host.
type SleepDelayer struct{}

// Delay implements protocol.Delayer.
func (SleepDelayer) Delay(d time.Duration) {
	time.Sleep(d)
}
