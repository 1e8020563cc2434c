package doctor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/moffa90/go-hvsp/device"
	"github.com/moffa90/go-hvsp/protocol"
)

// Programmer runs HVSP sessions against one target socket.
// It handles power sequencing, identification, fuse programming and
// verification with progress tracking.
//
// Programmer is safe for concurrent use: a session started while another
// one runs fails with ErrSessionActive.
type Programmer struct {
	conn   *protocol.Conn
	config Config

	mu      sync.Mutex
	state   atomic.Int32
	started time.Time
}

// New creates a new Programmer driving bus with the given delay source.
//
// Example:
//
//	bus, _ := gpiobus.Open(pins)
//	prog := doctor.New(bus, gpiobus.SpinDelayer{},
//	    doctor.WithProgressCallback(progressFunc),
//	    doctor.WithPollTimeout(200*time.Millisecond),
//	)
func New(bus protocol.Bus, delay protocol.Delayer, opts ...Option) *Programmer {
	if bus == nil {
		panic("bus cannot be nil")
	}
	if delay == nil {
		panic("delayer cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		conn:   protocol.NewConn(bus, delay, cfg.Timing),
		config: cfg,
	}
}

// State returns the current session state.
func (p *Programmer) State() State {
	return State(p.state.Load())
}

// Restore performs the complete fuse restoration sequence:
//  1. Power up and enter HVSP mode
//  2. Read the signature and look the device up
//  3. Write the low, high and (when the device has one) extended fuse
//  4. Read every written fuse back and compare
//  5. Power down
//
// The context is only consulted before power-up; a session that started
// always runs to completion and always powers the target down.
// The returned report is never nil.
func (p *Programmer) Restore(ctx context.Context) (*Report, error) {
	report := &Report{}
	err := p.session(ctx, report, func() error {
		return p.restore(report)
	})
	return report, err
}

// ReadFuses powers the target up, identifies it and reads its current
// fuse values without writing anything.
func (p *Programmer) ReadFuses(ctx context.Context) (*Report, error) {
	report := &Report{}
	err := p.session(ctx, report, func() error {
		desc, err := p.identify(report)
		if err != nil {
			return err
		}
		_, err = p.readFuses(report, desc, PhaseReading)
		return err
	})
	return report, err
}

// Identify powers the target up, reads its signature and returns the
// matching descriptor.
//
// Returns *UnknownDeviceError when no supported device matches.
func (p *Programmer) Identify(ctx context.Context) (*device.Descriptor, error) {
	report := &Report{}
	err := p.session(ctx, report, func() error {
		_, err := p.identify(report)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report.Device, nil
}

// session runs op between power-up and power-down.
func (p *Programmer) session(ctx context.Context, report *Report, op func() error) (err error) {
	if !p.mu.TryLock() {
		report.Err = ErrSessionActive
		return ErrSessionActive
	}
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		report.Err = fmt.Errorf("cancelled: %w", err)
		return report.Err
	}

	p.started = time.Now()
	pulses := p.conn.Pulses()
	p.logDebug("session started",
		"pulse_width", p.conn.Timing().PulseWidth.String(),
		"poll_timeout", p.conn.Timing().PollTimeout.String(),
	)

	defer func() {
		if perr := p.powerDown(report); perr != nil {
			p.logError("power down failed", "error", perr)
			if err == nil {
				err = fmt.Errorf("power down: %w", perr)
			}
		}
		p.setState(Idle, report)

		report.Err = err
		report.Success = Outcome(err)
		report.Duration = time.Since(p.started)

		phase := PhaseComplete
		if err != nil {
			phase = PhaseFailed
			p.logError("session failed", "error", err, "elapsed", report.Duration.String())
		} else {
			p.logInfo("session complete", "elapsed", report.Duration.String())
		}
		p.logDebug("clock pulses", "count", p.conn.Pulses()-pulses)
		p.reportProgress(report, Progress{Phase: phase})
	}()

	if err := p.powerUp(report); err != nil {
		return fmt.Errorf("power up: %w", err)
	}

	p.setState(Operating, report)
	return op()
}

// initialLevels is the Prog_enable pattern: everything low except RESET,
// which is inverted by the 12V switch.
var initialLevels = map[protocol.Line]gpio.Level{
	protocol.Clock:         gpio.Low,
	protocol.DataIn:        gpio.Low,
	protocol.InstructionIn: gpio.Low,
	protocol.DataOut:       gpio.Low,
	protocol.Reset:         gpio.High,
	protocol.Supply:        gpio.Low,
}

func (p *Programmer) powerUp(report *Report) error {
	p.setState(PoweringUp, report)

	// Levels first: RESET must never be driven low before VCC is up
	for _, line := range protocol.Lines {
		if err := p.conn.Drive(line, initialLevels[line]); err != nil {
			return err
		}
		if err := p.conn.Configure(line, protocol.Output); err != nil {
			return err
		}
	}

	if err := p.conn.Drive(protocol.Supply, gpio.High); err != nil {
		return err
	}
	p.conn.Wait(p.config.PowerSettle)

	if err := p.conn.Drive(protocol.Reset, gpio.Low); err != nil {
		return err
	}
	p.setState(ResetAsserted, report)
	p.conn.Wait(p.config.ProgEnableHold)

	if err := p.conn.Configure(protocol.DataOut, protocol.Input); err != nil {
		return err
	}
	p.setState(ModeEntering, report)
	p.conn.Wait(p.config.ModeEntry)

	return nil
}

// powerDown attempts every step even when one fails, so VCC is removed
// whenever the bus still allows it.
func (p *Programmer) powerDown(report *Report) error {
	p.setState(PoweringDown, report)

	var errs []error
	for _, line := range []protocol.Line{protocol.Clock, protocol.InstructionIn, protocol.DataIn} {
		if err := p.conn.Drive(line, gpio.Low); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.conn.Drive(protocol.Reset, gpio.High); err != nil {
		errs = append(errs, err)
	}
	p.conn.Wait(p.config.PowerDownHold)
	if err := p.conn.Drive(protocol.Supply, gpio.Low); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// identify runs in the Operating state, whose progress report already
// carries the identifying phase.
//
// Each table entry is checked against fresh reads from the target, byte by
// byte, moving to the next entry on the first mismatch.
func (p *Programmer) identify(report *Report) (*device.Descriptor, error) {
	var read [protocol.SignatureSize]bool

	for _, d := range device.All() {
		match := true
		for i := 0; i < protocol.SignatureSize; i++ {
			b, err := p.conn.ReadSignatureByte(i)
			if err != nil {
				return nil, err
			}
			report.Signature[i] = b
			read[i] = true
			if b != d.Signature[i] {
				match = false
				break
			}
		}
		if match {
			desc := d
			report.Device = &desc
			p.logInfo("device identified", "device", desc.Name, "signature", report.Signature.String())
			return &desc, nil
		}
	}

	// Complete the signature for the report.
	for i, ok := range read {
		if ok {
			continue
		}
		b, err := p.conn.ReadSignatureByte(i)
		if err != nil {
			return nil, err
		}
		report.Signature[i] = b
	}

	p.logError("unknown device", "signature", report.Signature.String())
	return nil, &UnknownDeviceError{Signature: report.Signature}
}

func (p *Programmer) restore(report *Report) error {
	desc, err := p.identify(report)
	if err != nil {
		return err
	}

	fuses := desc.Fuses()
	for _, f := range fuses {
		p.reportProgress(report, Progress{Phase: PhaseWriting, Fuse: f.Kind})

		if err := p.conn.WriteFuse(f.Kind, f.Value); err != nil {
			return fmt.Errorf("write %s fuse: %w", f.Kind, err)
		}
		report.Written = append(report.Written, f)

		p.logDebug("fuse written", "fuse", f.Kind.String(), "value", fmt.Sprintf("0x%02X", f.Value))
	}

	if !p.config.Verify {
		return nil
	}

	read, err := p.readFuses(report, desc, PhaseVerifying)
	if err != nil {
		return err
	}
	for i, f := range fuses {
		if read[i] != f.Value {
			return &VerifyMismatchError{Fuse: f.Kind, Expected: f.Value, Actual: read[i]}
		}
	}
	return nil
}

// readFuses reads every fuse the device has, in table order.
func (p *Programmer) readFuses(report *Report, desc *device.Descriptor, phase string) ([]byte, error) {
	fuses := desc.Fuses()
	values := make([]byte, 0, len(fuses))

	for _, f := range fuses {
		p.reportProgress(report, Progress{Phase: phase, Fuse: f.Kind})

		v, err := p.conn.ReadFuse(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("read %s fuse: %w", f.Kind, err)
		}
		values = append(values, v)
		report.Read = append(report.Read, device.Fuse{Kind: f.Kind, Value: v})

		p.logDebug("fuse read", "fuse", f.Kind.String(), "value", fmt.Sprintf("0x%02X", v))
	}
	return values, nil
}

func (p *Programmer) setState(s State, report *Report) {
	p.state.Store(int32(s))

	var phase string
	switch s {
	case PoweringUp, ResetAsserted, ModeEntering:
		phase = PhasePowerUp
	case Operating:
		phase = PhaseIdentify
	case PoweringDown:
		phase = PhasePowerDown
	default:
		// Idle is reported together with the final phase
		return
	}
	p.reportProgress(report, Progress{State: s, Phase: phase})
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(report *Report, progress Progress) {
	if p.config.ProgressCallback == nil {
		return
	}
	progress.State = p.State()
	if report != nil && report.Device != nil {
		progress.Device = report.Device.Name
	}
	progress.ElapsedTime = time.Since(p.started)
	p.config.ProgressCallback(progress)
}

// logDebug logs a debug message if a logger is configured.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (p *Programmer) logError(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
