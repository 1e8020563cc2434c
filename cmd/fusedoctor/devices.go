package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-hvsp/device"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the supported parts and their default fuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			header := color.New(color.Bold)
			header.Fprintln(w, "DEVICE\tSIGNATURE\tLOW\tHIGH\tEXTENDED")

			for _, d := range device.All() {
				ext := "-"
				if d.HasExtended() {
					ext = fmt.Sprintf("0x%02X", d.Extended)
				}
				fmt.Fprintf(w, "%s\t%s\t0x%02X\t0x%02X\t%s\n", d.Name, d.Signature, d.Low, d.High, ext)
			}
			return w.Flush()
		},
	}
}
