package main

import (
	"context"
	"os"

	"go-wsi-cohort/internal/config"

	"github.com/charmbracelet/fang"
)

func main() {
	root := newRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(config.Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
