package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/grabpic/pipeline/internal/config"
	"github.com/grabpic/pipeline/internal/database/postgres"
	"github.com/grabpic/pipeline/internal/domain"
	"github.com/grabpic/pipeline/internal/faceengine"
	"github.com/grabpic/pipeline/internal/jobqueue"
	"github.com/grabpic/pipeline/internal/remote"
	"github.com/grabpic/pipeline/internal/storage"
	"github.com/grabpic/pipeline/internal/worker"
)

var syncOnceCmd = &cobra.Command{
	Use:   "sync-once",
	Short: "Enqueue and run a single sync_event job to completion",
	Long: `Enqueue a sync_event job for an event and drive it to completion
in this process, printing a progress bar. Useful for an initial sync or
a manual re-sync without starting the long-running worker loop.`,
	RunE: runSyncOnce,
}

func init() {
	rootCmd.AddCommand(syncOnceCmd)
	syncOnceCmd.Flags().String("event-id", "", "Event id to sync (required)")
}

func runSyncOnce(cmd *cobra.Command, args []string) error {
	eventID := mustGetString(cmd, "event-id")
	if eventID == "" {
		return errors.New("--event-id is required")
	}

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Remote.APIKey == "" {
		return errors.New("GOOGLE_DRIVE_API_KEY environment variable is required")
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

	st, err := storage.New(cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("preparing storage root: %w", err)
	}
	engine, err := faceengine.New(cfg.FaceEngine)
	if err != nil {
		return fmt.Errorf("initializing face engine: %w", err)
	}
	selfieEngine, err := faceengine.New(faceengine.ReferenceConfig(cfg.FaceEngine))
	if err != nil {
		return fmt.Errorf("initializing selfie face engine: %w", err)
	}

	queue := jobqueue.New(repo.Pool())
	if err := repo.UpdateEventStatus(ctx, eventID, domain.EventSyncing); err != nil {
		return fmt.Errorf("marking event syncing: %w", err)
	}
	job, err := queue.Enqueue(ctx, domain.JobSyncEvent, &eventID, nil, map[string]any{"trigger": "manual"}, "queued")
	if err != nil {
		return fmt.Errorf("enqueueing sync job: %w", err)
	}

	w := worker.New(cfg, repo, queue, st, remote.NewClient(cfg.Remote.APIKey), engine, selfieEngine)

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("Syncing "+event.Name),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	done := make(chan error, 1)
	go func() {
		_, runErr := w.RunOnce(ctx)
		done <- runErr
	}()

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case runErr := <-done:
			if runErr != nil {
				return fmt.Errorf("running sync job: %w", runErr)
			}
			bar.Set(100)
			fmt.Println()
			return reportSyncOutcome(ctx, queue, job.ID)
		case <-ticker.C:
			if current, err := queue.GetJob(ctx, job.ID); err == nil {
				bar.Set(int(current.ProgressPercent))
			}
		}
	}
}

func reportSyncOutcome(ctx context.Context, queue *jobqueue.Queue, jobID string) error {
	final, err := queue.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading final job state: %w", err)
	}
	if final.Status == domain.JobFailed {
		return fmt.Errorf("sync job failed: %s", final.ErrorText)
	}
	fmt.Printf("Sync job %s finished with status %s\n", jobID, final.Status)
	return nil
}
