// The main package for the crowley executable.
package main

import (
	"github.com/JakeFAU/crowley/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
