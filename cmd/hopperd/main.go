package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"hopper/internal/config"
	"hopper/internal/daemonrun"
)

func main() {
	// A local .env may carry SUMMARIZER_API_KEY, HOPPER_NTFY_TOPIC, and
	// HOPPER_API_TOKEN when running outside a managed environment.
	_ = godotenv.Load()

	cfg, _, _, err := config.Load(os.Getenv("HOPPER_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "ensure directories: %v\n", err)
		os.Exit(1)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
