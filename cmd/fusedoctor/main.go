// fusedoctor restores the fuses of AVR microcontrollers to factory defaults
// over High-Voltage Serial Programming, from a Raspberry Pi or any other
// host with six free GPIO lines.
package main

import "os"

var version = "dev" // set by the linker

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
