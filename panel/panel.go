// Package panel is the operator side of a fuse doctor: a push button that
// starts a session and an LED that shows its result.
//
// The LED is held on for four seconds after a successful restore and
// blinks for four seconds after a failure.
package panel

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/moffa90/go-hvsp/doctor"
)

// Default panel timing.
const (
	DefaultStep  = 250 * time.Millisecond
	DefaultSteps = 16
	DefaultIdle  = 10 * time.Millisecond
)

// Button is an active-low push button with the internal pull-up enabled.
type Button struct {
	pin gpio.PinIn
}

// NewButton configures pin as an input with pull-up.
func NewButton(pin gpio.PinIn) (*Button, error) {
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure button %s: %w", pin, err)
	}
	return &Button{pin: pin}, nil
}

// Pressed samples the button once. There is no debouncing.
func (b *Button) Pressed() bool {
	return b.pin.Read() == gpio.Low
}

// Indicator is an active-low LED.
type Indicator struct {
	pin   gpio.PinOut
	step  time.Duration
	steps int
	sleep func(time.Duration)
}

// NewIndicator wraps pin. A zero step or steps takes the default.
func NewIndicator(pin gpio.PinOut, step time.Duration, steps int) *Indicator {
	if step <= 0 {
		step = DefaultStep
	}
	if steps <= 0 {
		steps = DefaultSteps
	}
	return &Indicator{pin: pin, step: step, steps: steps, sleep: time.Sleep}
}

// Off turns the LED off.
func (i *Indicator) Off() error {
	return i.pin.Out(gpio.High)
}

// Show plays the result pattern and blocks until it is done: on success the
// LED stays lit for every step, on failure it toggles at every step.
func (i *Indicator) Show(ok bool) error {
	level := gpio.High
	for n := 0; n < i.steps; n++ {
		if ok {
			level = gpio.Low
		} else {
			level = !level
		}
		if err := i.pin.Out(level); err != nil {
			return err
		}
		i.sleep(i.step)
	}
	return nil
}

// Restorer runs one restore session.
type Restorer interface {
	Restore(ctx context.Context) (*doctor.Report, error)
}

// Panel ties a button and an indicator to a Restorer.
type Panel struct {
	Button    *Button
	Indicator *Indicator

	// Idle is the wait between two button samples
	Idle time.Duration

	// Logger receives one line per session (optional)
	Logger doctor.Logger
}

// Run samples the button until ctx is done and runs a session on every
// press. It only returns between sessions, with ctx.Err().
func (p *Panel) Run(ctx context.Context, r Restorer) error {
	idle := p.Idle
	if idle <= 0 {
		idle = DefaultIdle
	}

	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Indicator.Off(); err != nil {
			return fmt.Errorf("indicator: %w", err)
		}

		if p.Button.Pressed() {
			report, err := r.Restore(ctx)
			p.log(report, err)
			if err := p.Indicator.Show(doctor.Outcome(err)); err != nil {
				return fmt.Errorf("indicator: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Panel) log(report *doctor.Report, err error) {
	if p.Logger == nil {
		return
	}
	if err != nil {
		p.Logger.Error("restore failed", "error", err)
		return
	}
	if report != nil && report.Device != nil {
		p.Logger.Info("restore complete", "device", report.Device.Name, "elapsed", report.Duration.String())
	}
}
