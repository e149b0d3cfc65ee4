// Command outreachctl runs engine operations from a terminal: schema setup,
// one-off sync and follow-up passes, analytics and campaign management.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
