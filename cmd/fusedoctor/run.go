package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-hvsp/doctor"
	"github.com/moffa90/go-hvsp/gpiobus"
	"github.com/moffa90/go-hvsp/panel"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Wait for the button and restore the part in the socket",
		Long: `Watch the push button and run a programming session on every press.
The LED is held on for four seconds when the fuses were restored and
blinks for four seconds otherwise. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			bus, err := gpiobus.Open(a.config.BusPins())
			if err != nil {
				return fmt.Errorf("open gpio: %w", err)
			}
			defer func() {
				if err := bus.Close(); err != nil {
					a.logger.Error("release gpio", "error", err)
				}
			}()

			p, err := a.openPanel()
			if err != nil {
				return err
			}

			prog := doctor.New(bus, a.config.Delayer(), append(a.config.ProgrammerOptions(), doctor.WithLogger(a.logger))...)
			a.logger.Info("waiting for button", "button", a.config.Pins.Button, "led", a.config.Pins.LED)

			err = p.Run(ctx, prog)
			if errors.Is(err, context.Canceled) {
				a.logger.Info("stopped")
				return nil
			}
			return err
		},
	}
}

func (a *app) openPanel() (*panel.Panel, error) {
	buttonPin, err := gpiobus.OpenPin(a.config.Pins.Button)
	if err != nil {
		return nil, fmt.Errorf("button: %w", err)
	}
	button, err := panel.NewButton(buttonPin)
	if err != nil {
		return nil, err
	}

	ledPin, err := gpiobus.OpenPin(a.config.Pins.LED)
	if err != nil {
		return nil, fmt.Errorf("led: %w", err)
	}
	ind := panel.NewIndicator(ledPin, a.config.Panel.Step, a.config.Panel.Steps)

	return &panel.Panel{
		Button:    button,
		Indicator: ind,
		Idle:      a.config.Panel.Idle,
		Logger:    a.logger,
	}, nil
}
