// Command screeps-adapter attaches to a Screeps web client and reports its
// view, room and selection changes.
package main

import (
	"os"

	"github.com/Iron-Ham/screeps-adapter/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
