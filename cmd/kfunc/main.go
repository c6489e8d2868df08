// Command kfunc prints, evaluates and differentiates functions defined in HCL
// files.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
