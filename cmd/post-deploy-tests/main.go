package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cloudtune-ops/internal/smoketest"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env file: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := smoketest.NewRunner(smoketest.ConfigFromEnv(), os.Stdout).Run(ctx)
	stop()

	var failure *smoketest.Failure
	switch {
	case err == nil:
		fmt.Println("POST_DEPLOY_TESTS_PASSED")
	case errors.As(err, &failure):
		fmt.Printf("POST_DEPLOY_TESTS_FAILED: %v\n", err)
		os.Exit(1)
	default:
		fmt.Printf("POST_DEPLOY_TESTS_FAILED_UNEXPECTED: %v\n", err)
		os.Exit(1)
	}
}
