package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the client version reported by the banner.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "transcriba",
	Short: "Transcriba is an audio transcription client",
	Long: `A command-line client for the Transcriba transcription service.
Log in, upload audio files, and follow your transcription jobs.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
