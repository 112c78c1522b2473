// Entry point for the reshape CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mesh-intelligence/reshape/pkg/types"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, types.ErrValidation) {
			os.Exit(exitUserError)
		}
		os.Exit(exitSysError)
	}
}
