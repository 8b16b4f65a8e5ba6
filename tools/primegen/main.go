// Command primegen prints probable primes of a given bit length.
//
//	primegen <bits> [count] [flags]
//
// See "primegen --help" for the flags.
package main

import (
	"os"

	"github.com/gostdlib/primegen/tools/primegen/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
