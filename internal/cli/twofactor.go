package cli

import (
	"github.com/satecha/satecha/internal/cli/output"
	"github.com/satecha/satecha/internal/i18n"
	"github.com/spf13/cobra"
)

var twoFactorCmd = &cobra.Command{
	Use:   "2fa",
	Short: "Manage two-factor authentication",
}

var twoFactorEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Generate a new authenticator secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		enrollment, err := app.flow.EnableTwoFactor(cmd.Context())
		if err != nil {
			return failure(err)
		}
		if flagJSON {
			output.JSON(stdout(cmd), output.NewEnrollmentJSON(enrollment))
			return nil
		}
		output.Enrollment(stdout(cmd), lang, enrollment)
		return nil
	},
}

var twoFactorVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Confirm the authenticator secret with a code",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := valueOrPrompt(cmd, flagCode, "Code")
		if err != nil {
			return err
		}
		if err := app.flow.VerifyTwoFactor(cmd.Context(), code); err != nil {
			return failure(err)
		}
		output.Message(stdout(cmd), lang, i18n.KeyTwoFactorEnabled)
		return nil
	},
}

var twoFactorDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Remove the authenticator secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.flow.DisableTwoFactor(cmd.Context()); err != nil {
			return failure(err)
		}
		output.Message(stdout(cmd), lang, i18n.KeyTwoFactorDisabled)
		return nil
	},
}

func init() {
	twoFactorVerifyCmd.Flags().StringVar(&flagCode, "code", "", "The 6-digit code from your authenticator app")

	twoFactorCmd.AddCommand(twoFactorEnableCmd, twoFactorVerifyCmd, twoFactorDisableCmd)
	rootCmd.AddCommand(twoFactorCmd)
}
