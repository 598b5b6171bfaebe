// Command calc evaluates one calculation from the command line:
//
//	calc add 5 3
//	calc --symbols / -5 3
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
