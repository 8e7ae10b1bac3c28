// Command hrsdb inspects the Heart Rate Sensor attribute database without
// touching any Bluetooth hardware.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
