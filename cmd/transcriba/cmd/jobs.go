package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/transcriba/transcriba/transcriptions"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage transcription jobs",
}

var (
	listPage     int
	listPageSize int
	listSearch   string
	listStatus   string
)

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your transcription jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if !app.guard.Allow(cmd.Context(), "jobs list") {
			return fmt.Errorf("not authenticated")
		}
		if err := app.manager.GetProfile(cmd.Context()); err != nil {
			return err
		}

		page, err := app.jobs.ListUserJobs(cmd.Context(), app.state.User().ID, transcriptions.ListParams{
			Page:     listPage,
			PageSize: listPageSize,
			Search:   listSearch,
			Status:   listStatus,
		})
		if err != nil {
			return err
		}

		if len(page.Jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILE\tSTATUS\tLANGUAGE\tCREATED")
		for _, job := range page.Jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				job.ID, job.FileName, job.Status, job.Language,
				job.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		w.Flush()
		fmt.Printf("\nPage %d, %d total\n", page.Page, page.Total)
		return nil
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show a job and its transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if !app.guard.Allow(cmd.Context(), "jobs get") {
			return fmt.Errorf("not authenticated")
		}

		job, err := app.jobs.GetJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("File:     %s\n", job.FileName)
		fmt.Printf("Status:   %s\n", job.Status)
		fmt.Printf("Language: %s (%s)\n", job.Language, job.OperatingPoint)
		if job.Transcript != "" {
			fmt.Printf("\n%s\n", job.Transcript)
		}
		return nil
	},
}

var (
	newLanguage string
	newEnhanced bool
)

var jobsNewCmd = &cobra.Command{
	Use:   "new <audio-file>",
	Short: "Upload an audio file for transcription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if !app.guard.Allow(cmd.Context(), "jobs new") {
			return fmt.Errorf("not authenticated")
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening audio file: %w", err)
		}
		defer f.Close()

		op := transcriptions.OperatingPointStandard
		if newEnhanced {
			op = transcriptions.OperatingPointEnhanced
		}
		job, err := app.jobs.CreateJob(cmd.Context(), transcriptions.NewJob{
			FileName:       filepath.Base(args[0]),
			Audio:          f,
			Language:       newLanguage,
			OperatingPoint: op,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Job %s queued (%s)\n", job.ID, job.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsGetCmd, jobsNewCmd)

	jobsListCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	jobsListCmd.Flags().IntVar(&listPageSize, "page-size", 10, "Jobs per page")
	jobsListCmd.Flags().StringVar(&listSearch, "search", "", "Filter by file name")
	jobsListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")

	jobsNewCmd.Flags().StringVarP(&newLanguage, "language", "l", "es", "Audio language")
	jobsNewCmd.Flags().BoolVar(&newEnhanced, "enhanced", false, "Use the enhanced operating point")
}
