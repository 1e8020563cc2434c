package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand once the configuration has
// been loaded.
type app struct {
	configFile string
	verbose    bool

	config Config
	logger *slog.Logger
}

// newRootCmd creates the command tree. Tests build a fresh tree per case.
func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "fusedoctor",
		Short: "Restore AVR fuses over high-voltage serial programming",
		Long: `fusedoctor resets the fuse bytes of ATtiny microcontrollers to their
factory defaults. It identifies the part in the socket by its signature,
writes the default low, high and extended fuses and reads them back.

Run "fusedoctor run" for the push-button workflow or "fusedoctor restore"
for a single session from the terminal.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd, a.configFile)
			if err != nil {
				return err
			}
			a.config = cfg

			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default searches $XDG_CONFIG_HOME/fusedoctor, /etc/fusedoctor and .)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "make verbose (enable debug logging)")

	cmd.AddCommand(
		newRunCmd(a),
		newRestoreCmd(a),
		newDevicesCmd(),
		newConfigCmd(a),
	)
	return cmd
}
