// Command kmeanssim runs distributed k-means over a simulated worker pool.
//
//	kmeanssim run --workers 4 --rows 1000 --cols 10 --clusters 5 --parts 4
//
// Every flag can also be set in a YAML or TOML config file (--config) or
// through MGKMEANS_* environment variables, e.g. MGKMEANS_MAX_ITERATIONS.
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
