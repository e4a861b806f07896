package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Ramsey-B/fern/internal/cli"
)

var Version = "dev"

func main() {
	if err := cli.NewRootCommand(Version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
