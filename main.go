// The main package for the searchconsole executable.
package main

import (
	"github.com/JakeFAU/searchconsole/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
