package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/grabpic/pipeline/internal/config"
	"github.com/grabpic/pipeline/internal/database/postgres"
	"github.com/grabpic/pipeline/internal/domain"
	"github.com/grabpic/pipeline/internal/jobqueue"
	"github.com/spf13/cobra"
)

var enqueueMatchCmd = &cobra.Command{
	Use:   "enqueue-match",
	Short: "Enqueue a match_guest job for a guest query",
	RunE:  runEnqueueMatch,
}

func init() {
	rootCmd.AddCommand(enqueueMatchCmd)
	enqueueMatchCmd.Flags().String("query-id", "", "Guest query id to match (required)")
}

func runEnqueueMatch(cmd *cobra.Command, args []string) error {
	queryID := mustGetString(cmd, "query-id")
	if queryID == "" {
		return errors.New("--query-id is required")
	}

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	repo, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer repo.Close()

	query, err := repo.GetGuestQuery(ctx, queryID)
	if err != nil {
		return fmt.Errorf("loading guest query %s: %w", queryID, err)
	}
	if query == nil {
		return fmt.Errorf("guest query %s not found", queryID)
	}

	queue := jobqueue.New(repo.Pool())
	job, err := queue.Enqueue(ctx, domain.JobMatchGuest, nil, &queryID, nil, "queued")
	if err != nil {
		return fmt.Errorf("enqueueing match job: %w", err)
	}

	fmt.Printf("Enqueued match job %s for query %s\n", job.ID, queryID)
	return nil
}
