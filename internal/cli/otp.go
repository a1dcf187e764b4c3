package cli

import (
	"errors"

	"github.com/satecha/satecha/internal/auth"
	"github.com/satecha/satecha/internal/cli/output"
	"github.com/satecha/satecha/internal/i18n"
	"github.com/satecha/satecha/internal/identity"
	"github.com/spf13/cobra"
)

var flagPurpose string

var otpCmd = &cobra.Command{
	Use:   "otp",
	Short: "Sign up or sign in with a one-time code sent by email",
}

var otpSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Email a 6-digit code",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := valueOrPrompt(cmd, flagEmail, "Email")
		if err != nil {
			return err
		}
		if err := auth.ValidateEmail(email); err != nil {
			return failure(err)
		}

		purpose := identity.Purpose(flagPurpose)
		var data *auth.UserData
		if purpose == identity.PurposeSignup {
			d := userData()
			data = &d
		}
		if err := app.flow.SendOTP(cmd.Context(), email, purpose, data); err != nil {
			return failure(err)
		}

		if flagJSON {
			output.JSON(stdout(cmd), map[string]string{"email": email, "purpose": string(purpose)})
			return nil
		}
		output.Message(stdout(cmd), lang, i18n.KeyCodeSent, email)
		return nil
	},
}

var otpVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Exchange an emailed code for a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := valueOrPrompt(cmd, flagEmail, "Email")
		if err != nil {
			return err
		}
		code, err := valueOrPrompt(cmd, flagCode, "Code")
		if err != nil {
			return err
		}

		id, err := app.flow.VerifyOTP(cmd.Context(), email, code, identity.Purpose(flagPurpose))
		if errors.Is(err, auth.ErrSecondFactorRequired) {
			flagCode = ""
			id, err = completeSecondFactor(cmd)
		}
		if err != nil {
			return failure(err)
		}

		if !flagJSON {
			output.Message(stdout(cmd), lang, i18n.KeyCodeVerified)
		}
		return printIdentity(cmd, id)
	},
}

func init() {
	for _, c := range []*cobra.Command{otpSendCmd, otpVerifyCmd} {
		c.Flags().StringVar(&flagEmail, "email", "", "Account email")
		c.Flags().StringVar(&flagPurpose, "purpose", string(identity.PurposeSignin), "signin or signup")
	}
	otpSendCmd.Flags().StringVar(&flagUsername, "username", "", "Display name for a new account")
	otpSendCmd.Flags().StringVar(&flagFullName, "full-name", "", "Full name for a new account")
	otpSendCmd.Flags().StringVar(&flagUserLang, "language", "", "Preferred language for a new account")
	otpVerifyCmd.Flags().StringVar(&flagCode, "code", "", "The 6-digit code from the email")

	otpCmd.AddCommand(otpSendCmd, otpVerifyCmd)
	rootCmd.AddCommand(otpCmd)
}
