package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transcriba/transcriba/auth"
)

var (
	loginEmail    string
	loginPassword string
	loginRemember bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the transcription service",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		err = app.manager.Login(cmd.Context(), auth.LoginRequest{
			Email:      loginEmail,
			Password:   loginPassword,
			RememberMe: loginRemember,
		})
		if err != nil {
			return err
		}

		user := app.state.User()
		fmt.Printf("Logged in as %s (%s)\n", user.Name, user.Email)
		if !loginRemember {
			fmt.Println("Session tokens are not persisted; use --remember to stay logged in.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password")
	loginCmd.Flags().BoolVar(&loginRemember, "remember", false, "Persist tokens across invocations")
	loginCmd.MarkFlagRequired("email")
	loginCmd.MarkFlagRequired("password")
}
