// Package main is the entry point for the zswag-call CLI.
package main

import (
	"fmt"
	"os"

	"github.com/ndsev/zswag-sub000/cmd/zswag-call/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "there was an error: %v\n", err)
		os.Exit(1)
	}
}
