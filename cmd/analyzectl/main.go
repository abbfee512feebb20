// Command analyzectl runs document analyses in-process against the configured
// database and object store.
package main

import (
	"fmt"
	"os"

	"legal-backend/internal/bootstrap"
	"legal-backend/internal/shared/config"
)

func main() {
	build := func() (*bootstrap.App, error) {
		cfg := config.Load()
		// Runs execute here rather than being handed to a worker.
		cfg.SQSQueueURL = ""
		return bootstrap.Build(cfg)
	}
	c := newCLI(build, os.Stdout)
	err := c.rootCmd().Execute()
	c.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
