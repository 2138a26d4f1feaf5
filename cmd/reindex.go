package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spigell/talentcore/internal/indexer"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	targetJobs       = "jobs"
	targetCandidates = "candidates"
	targetDocuments  = "documents"
	targetAll        = "all"
)

var reindexCmd = &cobra.Command{
	Use:       "reindex [jobs|candidates|documents|all]",
	Short:     "Rebuild the vector index from the content database",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{targetJobs, targetCandidates, targetDocuments, targetAll},
	Run: func(cmd *cobra.Command, args []string) {
		target := targetAll
		if len(args) == 1 {
			target = args[0]
		}
		reindex(cmd, target)
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)

	reindexCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func reindex(cmd *cobra.Command, target string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, logger := setup(ctx, "reindex")
	defer application.Close()

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Reindex %s? Existing vectors of every listed entity are replaced", target),
			Items: []string{PromptYes, PromptNo},
		}
		_, answer, err := prompt.Run()
		if err != nil {
			logger.Fatal("prompt failed", zap.Error(err))
		}
		if answer != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	ix, err := application.indexer()
	if err != nil {
		logger.Fatal("creating the indexer", zap.Error(err))
	}

	reports, err := runReindex(ctx, application, ix, target)
	for _, report := range reports {
		logger.Info("reindex report",
			zap.String("collection", report.Collection),
			zap.Int("total", report.Total),
			zap.Int("indexed", report.Indexed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
			zap.Strings("failed_ids", report.FailedIDs),
			zap.Duration("took", report.Duration),
		)
	}
	if err != nil {
		logger.Fatal("reindex interrupted", zap.Error(err))
	}

	// cached top candidates were computed from the previous vectors
	application.engine.InvalidateAll()
}

func runReindex(ctx context.Context, a *application, ix *indexer.Indexer, target string) ([]indexer.Report, error) {
	var reports []indexer.Report

	if target == targetJobs || target == targetAll {
		jobs, err := a.content.ListJobs(ctx)
		if err != nil {
			return reports, fmt.Errorf("listing jobs: %w", err)
		}
		report, err := ix.IndexJobs(ctx, jobs)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
	}

	if target == targetCandidates || target == targetAll {
		candidates, err := a.content.ListCandidates(ctx)
		if err != nil {
			return reports, fmt.Errorf("listing candidates: %w", err)
		}
		report, err := ix.IndexCandidates(ctx, candidates)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
	}

	if target == targetDocuments || target == targetAll {
		docs, err := a.content.ListDocuments(ctx)
		if err != nil {
			return reports, fmt.Errorf("listing documents: %w", err)
		}
		report, err := ix.IndexDocuments(ctx, docs)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
	}

	return reports, nil
}
