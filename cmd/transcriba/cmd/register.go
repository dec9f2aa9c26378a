package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transcriba/transcriba/auth"
)

var registerReq auth.RegisterRequest

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		out, err := app.manager.Register(cmd.Context(), registerReq)
		if err != nil {
			return err
		}
		fmt.Printf("Account created for %s. Run `transcriba login` to sign in.\n", out.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVarP(&registerReq.Email, "email", "e", "", "Account email")
	registerCmd.Flags().StringVarP(&registerReq.Password, "password", "p", "", "Account password")
	registerCmd.Flags().StringVar(&registerReq.FirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&registerReq.LastName, "last-name", "", "Last name")
	registerCmd.MarkFlagRequired("email")
	registerCmd.MarkFlagRequired("password")
}
