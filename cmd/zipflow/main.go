// Command zipflow creates, lists and extracts ZIP archives from the
// command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "zipflow: %v\n", err)
		os.Exit(1)
	}
}
