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

var enqueueSyncCmd = &cobra.Command{
	Use:   "enqueue-sync",
	Short: "Enqueue a sync_event job for an event",
	RunE:  runEnqueueSync,
}

func init() {
	rootCmd.AddCommand(enqueueSyncCmd)
	enqueueSyncCmd.Flags().String("event-id", "", "Event id to sync (required)")
}

func runEnqueueSync(cmd *cobra.Command, args []string) error {
	eventID := mustGetString(cmd, "event-id")
	if eventID == "" {
		return errors.New("--event-id is required")
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

	event, err := repo.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("loading event %s: %w", eventID, err)
	}
	if event == nil {
		return fmt.Errorf("event %s not found", eventID)
	}

	queue := jobqueue.New(repo.Pool())
	if err := repo.UpdateEventStatus(ctx, eventID, domain.EventSyncing); err != nil {
		return fmt.Errorf("marking event syncing: %w", err)
	}
	job, err := queue.Enqueue(ctx, domain.JobSyncEvent, &eventID, nil, map[string]any{"trigger": "manual"}, "queued")
	if err != nil {
		return fmt.Errorf("enqueueing sync job: %w", err)
	}

	fmt.Printf("Enqueued sync job %s for event %s\n", job.ID, eventID)
	return nil
}
