package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"legal-backend/internal/analyses"
)

func (c *cli) uploadCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Store a document and print its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			doc, err := app.DocumentsService.Upload(cmd.Context(), owner, filepath.Base(args[0]), f)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			return c.printJSON(doc)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "anonymous", "Owner id recorded on the document")
	return cmd
}

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <document-id>",
		Short: "Analyze one document and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}
			runErr := app.Orchestrator.RunSingle(cmd.Context(), args[0], c.instructions)
			return c.report(cmd.Context(), args[0], runErr)
		},
	}
}

func (c *cli) conjointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conjoint <primary-id> <document-id>...",
		Short: "Analyze several documents together; the first id receives the report",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}
			runErr := app.Orchestrator.RunConjoint(cmd.Context(), args, c.instructions)
			return c.report(cmd.Context(), args[0], runErr)
		},
	}
}

func (c *cli) regenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <document-id>",
		Short: "Rebuild only the report from a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.App()
			if err != nil {
				return err
			}
			runErr := app.Orchestrator.RegenerateReportOnly(cmd.Context(), args[0], c.instructions, nil)
			return c.report(cmd.Context(), args[0], runErr)
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <document-id>",
		Short: "Print the status and stored analysis of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.report(cmd.Context(), args[0], nil)
		},
	}
}

type statusOutput struct {
	Status   analyses.StatusRecord `json:"status"`
	Analysis *analyses.Artifact    `json:"analysis,omitempty"`
}

// report prints whatever is stored for documentID, then returns runErr so
// the exit code reflects the run.
func (c *cli) report(ctx context.Context, documentID string, runErr error) error {
	app, err := c.App()
	if err != nil {
		return err
	}
	status, err := app.AnalysesRepo.GetStatus(ctx, documentID)
	if err != nil {
		if errors.Is(err, analyses.ErrNotFound) && runErr == nil {
			return fmt.Errorf("no analysis for document %s", documentID)
		}
		if runErr != nil {
			return runErr
		}
		return err
	}

	out := statusOutput{Status: status}
	if rec, err := app.AnalysesRepo.GetArtifact(ctx, documentID); err == nil {
		if artifact, err := rec.Decode(); err == nil {
			if status.Status != analyses.StatusCompleted {
				artifact.Report = nil
			}
			out.Analysis = &artifact
		}
	}
	if err := c.printJSON(out); err != nil {
		return err
	}
	return runErr
}
