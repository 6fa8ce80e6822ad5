package main

import (
	"fmt"
	"os"

	"github.com/vaultkit/vaultkit-cli/internals/vaultkit"
)

func main() {
	err := vaultkit.NewApp().Version(vaultkit.Version, vaultkit.Commit).Run(os.Args[1:])
	if err != nil {
		handleError(err)
	}

	os.Exit(0)
}

// handleError prints the error and exits with a non-zero code.
func handleError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encountered an error: %s\n", err)
		os.Exit(1)
	}
}
