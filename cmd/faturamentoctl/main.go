package main

import (
	"context"
	"os"

	"faturamento/internal/cli"
)

func main() {
	if err := cli.Run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		os.Exit(1)
	}
}
