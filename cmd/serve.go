package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grabpic/pipeline/internal/config"
	"github.com/grabpic/pipeline/internal/database/postgres"
	"github.com/grabpic/pipeline/internal/faceengine"
	"github.com/grabpic/pipeline/internal/jobqueue"
	"github.com/grabpic/pipeline/internal/remote"
	"github.com/grabpic/pipeline/internal/storage"
	"github.com/grabpic/pipeline/internal/worker"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline worker loop",
	Long: `Run the Worker / Pipeline Driver: claim sync, cluster and match jobs
from the job queue and drive them to completion until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Remote.APIKey == "" {
		return errors.New("GOOGLE_DRIVE_API_KEY environment variable is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("Connecting to PostgreSQL database...")
	repo, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer repo.Close()

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

	w := worker.New(cfg, repo, jobqueue.New(repo.Pool()), st, remote.NewClient(cfg.Remote.APIKey), engine, selfieEngine)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	fmt.Println("Worker started, polling for jobs. Press Ctrl+C to stop.")
	w.Run(ctx)
	return nil
}
