package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"legal-backend/internal/bootstrap"
)

type appFactory func() (*bootstrap.App, error)

// cli carries what every subcommand needs. The app is built lazily so
// --help works without a database.
type cli struct {
	build        appFactory
	app          *bootstrap.App
	out          io.Writer
	instructions string
}

func newCLI(build appFactory, out io.Writer) *cli {
	return &cli{build: build, out: out}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "analyzectl",
		Short:         "Run and inspect legal document analyses",
		Long:          "analyzectl uploads documents, runs single, conjoint and report-only analyses synchronously, and prints their status.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.instructions, "instructions", "", "Extra instructions passed to the report stage")

	root.AddCommand(
		c.uploadCmd(),
		c.runCmd(),
		c.conjointCmd(),
		c.regenerateCmd(),
		c.statusCmd(),
	)
	return root
}

func (c *cli) App() (*bootstrap.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	app, err := c.build()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	c.app = app
	return app, nil
}

func (c *cli) Close() {
	if c.app != nil {
		c.app.Close()
	}
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
