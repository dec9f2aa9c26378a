package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if !app.guard.Allow(cmd.Context(), "whoami") {
			return fmt.Errorf("not authenticated")
		}

		if err := app.manager.GetProfile(cmd.Context()); err != nil {
			return err
		}
		user := app.state.User()
		fmt.Printf("%s <%s>\n", user.Name, user.Email)
		if exp, ok := app.manager.TokenExpiry(); ok {
			fmt.Printf("Access token expires at %s\n", exp.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
