package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transcriba/transcriba/auth"
)

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password <email>",
	Short: "Request a password-reset email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.manager.ForgotPassword(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("If the address is registered, a reset email has been sent.")
		return nil
	},
}

var (
	resetToken    string
	resetPassword string
)

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password with a reset token",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		err = app.manager.ResetPassword(cmd.Context(), auth.ResetPasswordRequest{
			Token:    resetToken,
			Password: resetPassword,
		})
		if err != nil {
			return err
		}
		fmt.Println("Password updated. Run `transcriba login` to sign in.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forgotPasswordCmd)
	rootCmd.AddCommand(resetPasswordCmd)
	resetPasswordCmd.Flags().StringVarP(&resetToken, "token", "t", "", "Reset token from the email")
	resetPasswordCmd.Flags().StringVarP(&resetPassword, "password", "p", "", "New password")
	resetPasswordCmd.MarkFlagRequired("token")
	resetPasswordCmd.MarkFlagRequired("password")
}
