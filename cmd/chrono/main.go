// Command chrono replays clock and lifecycle scenarios.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/quantsim/chrono/chrono/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
