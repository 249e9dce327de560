// The main package for the leaderboard-crawler executable.
package main

import (
	"github.com/JakeFAU/leaderboard-crawler/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
