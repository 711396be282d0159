package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/foundriesio/fwup/pkg/progress"
)

// renderProgress builds the callback installs report through. On a
// terminal the current status line is repainted in place; elsewhere
// one line per status transition is printed so logs stay readable.
func renderProgress() progress.Callback {
	tty := isatty.IsTerminal(os.Stdout.Fd())
	var last progress.Status
	return func(status progress.Status, pct uint) {
		if tty {
			fmt.Printf("\r%-12s %3d%%", status, pct)
			if pct == 100 {
				fmt.Println()
			}
			return
		}
		if status != last {
			last = status
			fmt.Printf("%s ...\n", status)
		}
		if pct == 100 {
			fmt.Println("done")
		}
	}
}
