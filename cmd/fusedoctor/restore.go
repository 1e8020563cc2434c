package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-hvsp/doctor"
	"github.com/moffa90/go-hvsp/gpiobus"
	"github.com/moffa90/go-hvsp/protocol"
	"github.com/moffa90/go-hvsp/simtarget"
)

func newRestoreCmd(a *app) *cobra.Command {
	var dryRun bool
	var simulate string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the fuses of the part in the socket",
		Long: `Run one programming session now: identify the part, write its default
fuses and read them back. With --dry-run the current fuses are only read.

The command exits with status 1 when the part is unknown, a fuse write
times out or a fuse reads back differently.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bus, delay, closeBus, err := a.openBus(simulate)
			if err != nil {
				return err
			}
			defer closeBus()

			prog := doctor.New(bus, delay, append(a.config.ProgrammerOptions(), doctor.WithLogger(a.logger))...)

			var report *doctor.Report
			if dryRun {
				report, err = prog.ReadFuses(cmd.Context())
			} else {
				report, err = prog.Restore(cmd.Context())
			}
			printReport(cmd.OutOrStdout(), report, dryRun)
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "read the current fuses without writing")
	cmd.Flags().StringVar(&simulate, "simulate", "", "run against a simulated target with this signature (e.g. 1E9108)")
	_ = cmd.Flags().MarkHidden("simulate")
	return cmd
}

// openBus opens the configured GPIO lines, or a simulated target when sig
// is set.
func (a *app) openBus(sig string) (protocol.Bus, protocol.Delayer, func(), error) {
	if sig != "" {
		s, err := parseSignature(sig)
		if err != nil {
			return nil, nil, nil, err
		}
		a.logger.Debug("using simulated target", "signature", s.String())
		target := simtarget.New(s)
		return target, target, func() {}, nil
	}

	bus, err := gpiobus.Open(a.config.BusPins())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open gpio: %w", err)
	}
	closeBus := func() {
		if err := bus.Close(); err != nil {
			a.logger.Error("release gpio", "error", err)
		}
	}
	return bus, a.config.Delayer(), closeBus, nil
}

// parseSignature accepts "1E9108", "1E 91 08" or "1e:91:08".
func parseSignature(s string) (protocol.Signature, error) {
	var sig protocol.Signature
	clean := strings.NewReplacer(" ", "", ":", "", "0x", "", "0X", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return sig, fmt.Errorf("invalid signature %q: %w", s, err)
	}
	if len(b) != protocol.SignatureSize {
		return sig, fmt.Errorf("invalid signature %q: want %d bytes, got %d", s, protocol.SignatureSize, len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

func printReport(w io.Writer, r *doctor.Report, dryRun bool) {
	label := color.New(color.Bold)
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	if r.Device != nil {
		label.Fprint(w, "Device:    ")
		fmt.Fprintln(w, r.Device)
	} else if !r.Signature.IsZero() {
		label.Fprint(w, "Signature: ")
		fmt.Fprintln(w, r.Signature)
	}

	for _, f := range r.Written {
		fmt.Fprintf(w, "  %-8s wrote 0x%02X", f.Kind, f.Value)
		if v, ok := r.ReadValue(f.Kind); ok {
			if v == f.Value {
				pass.Fprintf(w, "  read 0x%02X", v)
			} else {
				fail.Fprintf(w, "  read 0x%02X", v)
			}
		}
		fmt.Fprintln(w)
	}
	if dryRun && r.Device != nil {
		for _, f := range r.Read {
			def, _ := r.Device.Default(f.Kind)
			fmt.Fprintf(w, "  %-8s 0x%02X (default 0x%02X)", f.Kind, f.Value, def)
			if f.Value != def {
				color.New(color.FgYellow).Fprint(w, "  differs")
			}
			fmt.Fprintln(w)
		}
	}

	label.Fprint(w, "Result:    ")
	switch {
	case r.Success:
		pass.Fprintf(w, "PASS")
		fmt.Fprintf(w, " (%s)\n", r.Duration.Round(time.Millisecond))
	case r.Err != nil:
		fail.Fprintf(w, "FAIL")
		fmt.Fprintf(w, " %v\n", r.Err)
	default:
		fail.Fprintln(w, "FAIL")
	}
}
