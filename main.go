// The main package for the nextfest executable.
package main

import (
	"github.com/zolointo/next-fext-randomizer/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
