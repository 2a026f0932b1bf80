package main

import (
	"context"
	"fmt"
	"os"

	"github.com/xaenox/persona-forge/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		os.Exit(1)
	}
}
