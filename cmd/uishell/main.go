// uishell is a terminal client for server-driven UIs.
package main

import (
	"os"

	"github.com/wethinkt/go-uishell/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
