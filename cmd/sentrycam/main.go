package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"sentrycam-go/internal/bootstrap"
)

const defaultMode = "pipeline"

func parseMode(raw string) (bootstrap.Mode, error) {
	switch raw {
	case "pipeline":
		return bootstrap.ModePipeline, nil
	case "dashboard":
		return bootstrap.ModeDashboard, nil
	case "all":
		return bootstrap.ModeAll, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected pipeline, dashboard, or all)", raw)
	}
}

func main() {
	mode := flag.String("mode", defaultMode, "which services to run: pipeline, dashboard, or all")
	flag.Parse()

	m, err := parseMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := bootstrap.Run(context.Background(), m); err != nil {
		fmt.Fprintf(os.Stderr, "sentrycam: %v\n", err)
		os.Exit(1)
	}
}
