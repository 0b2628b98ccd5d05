// Command tabi builds file-based static sites: pages live under a
// directory tree, routes fall out of the file paths, and the toolchain
// handles bundling, server rendering and live reload.
package main

import (
	"os"

	"github.com/tabi-dev/tabi/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
