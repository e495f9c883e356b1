// Command companion is the terminal client: it talks to a therapist profile
// by voice and runs the therapist setup wizard.
//
// Usage:
//
//	companion talk --therapist demo
//	companion setup
//	companion config init
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
