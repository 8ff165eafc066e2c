// Command appframe manages revisionable records and serves the API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/appframe/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
