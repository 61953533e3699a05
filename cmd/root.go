package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grabpic",
	Short: "GrabPic event face-matching pipeline",
	Long: `GrabPic is the ingest-and-match pipeline behind an event photo
gallery: it syncs photos from a remote folder, detects and clusters
faces, and matches guest selfies against the indexed faces.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
