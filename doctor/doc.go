// Package doctor restores the fuses of an AVR target to factory defaults
// over High-Voltage Serial Programming.
//
// # Overview
//
// A Programmer owns one target socket and runs complete sessions on it:
//   - Powering the target up and entering HVSP mode
//   - Reading the signature and matching it against the device table
//   - Writing the default low, high and extended fuse bytes
//   - Reading them back and comparing
//   - Powering the target down, whatever happened before
//
// # Basic Usage
//
//	bus, err := gpiobus.Open(gpiobus.DefaultPins())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prog := doctor.New(bus, gpiobus.SpinDelayer{})
//	report, err := prog.Restore(context.Background())
//	if err != nil {
//	    log.Fatalf("restore failed: %v", err)
//	}
//	fmt.Println("restored", report.Device.Name)
//
// Without hardware, a simulated target serves as both bus and delayer:
//
//	target := simtarget.New(protocol.Signature{0x1E, 0x93, 0x0B})
//	prog := doctor.New(target, target)
//
// # Configuration Options
//
//	prog := doctor.New(bus, delay,
//	    doctor.WithProgressCallback(progressFunc),
//	    doctor.WithLogger(slog.Default()),
//	    doctor.WithPulseWidth(2*time.Microsecond),
//	    doctor.WithPollTimeout(200*time.Millisecond),
//	    doctor.WithPowerSettle(40*time.Microsecond),
//	    doctor.WithVerify(true),
//	)
//
// Delays below the electrical minimums of the HVSP entry sequence are
// raised to those minimums.
//
// # Context Support
//
// The context is checked once, before power-up. A session that applied
// 12V to the target always completes its power-down sequence.
//
// # Error Handling
//
// The package provides structured error types:
//   - UnknownDeviceError: the signature matched no supported device
//   - VerifyMismatchError: a fuse read back differently
//   - protocol.TargetUnresponsiveError: a fuse write never completed
//   - protocol.BusError: a GPIO line failed
//   - ErrSessionActive: another session is running
//
// Report.Success and Outcome reduce any of these to the pass/fail result.
package doctor
