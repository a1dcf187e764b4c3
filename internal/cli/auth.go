package cli

import (
	"errors"
	"fmt"

	"github.com/satecha/satecha/internal/auth"
	"github.com/satecha/satecha/internal/cli/output"
	"github.com/satecha/satecha/internal/i18n"
	"github.com/satecha/satecha/internal/identity"
	"github.com/spf13/cobra"
)

var (
	flagEmail     string
	flagPassword  string
	flagUsername  string
	flagFullName  string
	flagUserLang  string
	flagEnable2FA bool
	flagCode      string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account with an email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := valueOrPrompt(cmd, flagEmail, "Email")
		if err != nil {
			return err
		}
		if err := auth.ValidateEmail(email); err != nil {
			return failure(err)
		}
		password, err := valueOrPrompt(cmd, flagPassword, "Password")
		if err != nil {
			return err
		}
		if err := auth.ValidatePassword(password); err != nil {
			return failure(err)
		}

		result, err := app.flow.SignUp(cmd.Context(), email, password, userData())
		if err != nil {
			return failure(err)
		}

		if flagJSON {
			out := struct {
				Identity      output.IdentityJSON    `json:"identity"`
				Enrollment    *output.EnrollmentJSON `json:"enrollment,omitempty"`
				EnrollmentErr string                 `json:"enrollmentError,omitempty"`
			}{Identity: output.NewIdentityJSON(result.Identity)}
			if result.Enrollment != nil {
				e := output.NewEnrollmentJSON(result.Enrollment)
				out.Enrollment = &e
			}
			if result.EnrollmentErr != nil {
				out.EnrollmentErr = auth.Message(result.EnrollmentErr)
			}
			output.JSON(stdout(cmd), out)
			return nil
		}

		output.Message(stdout(cmd), lang, i18n.KeyAccountCreated, result.Identity.Email)
		if result.Enrollment != nil {
			output.Enrollment(stdout(cmd), lang, result.Enrollment)
		}
		if result.EnrollmentErr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Two-factor setup failed:", auth.Message(result.EnrollmentErr))
		}
		return nil
	},
}

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with an email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := valueOrPrompt(cmd, flagEmail, "Email")
		if err != nil {
			return err
		}
		password, err := valueOrPrompt(cmd, flagPassword, "Password")
		if err != nil {
			return err
		}

		id, err := app.flow.SignIn(cmd.Context(), email, password)
		if errors.Is(err, auth.ErrSecondFactorRequired) {
			id, err = completeSecondFactor(cmd)
		}
		if err != nil {
			return failure(err)
		}
		return printIdentity(cmd, id)
	},
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and remove the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.flow.SignOut(cmd.Context()); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", auth.Message(err))
		}
		output.Message(stdout(cmd), lang, i18n.KeySignedOut)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		id := app.store.Identity()
		if id == nil {
			return errors.New(i18n.T(lang, i18n.KeyNotSignedIn))
		}
		return printIdentity(cmd, id)
	},
}

func init() {
	signupCmd.Flags().StringVar(&flagEmail, "email", "", "Account email")
	signupCmd.Flags().StringVar(&flagPassword, "password", "", "Password (at least 6 characters)")
	signupCmd.Flags().StringVar(&flagUsername, "username", "", "Display name")
	signupCmd.Flags().StringVar(&flagFullName, "full-name", "", "Full name")
	signupCmd.Flags().StringVar(&flagUserLang, "language", "", "Preferred language (en or my)")
	signupCmd.Flags().BoolVar(&flagEnable2FA, "enable-2fa", false, "Set up two-factor authentication right away")

	signinCmd.Flags().StringVar(&flagEmail, "email", "", "Account email")
	signinCmd.Flags().StringVar(&flagPassword, "password", "", "Password")
	signinCmd.Flags().StringVar(&flagCode, "code", "", "Authenticator code, when two-factor is enforced")

	rootCmd.AddCommand(signupCmd, signinCmd, signoutCmd, whoamiCmd)
}

func userData() auth.UserData {
	return auth.UserData{
		Username:        flagUsername,
		FullName:        flagFullName,
		Language:        flagUserLang,
		EnableTwoFactor: flagEnable2FA,
	}
}

// completeSecondFactor asks for the authenticator code of a held back
// sign-in. The provider session is ended when the code is not accepted.
func completeSecondFactor(cmd *cobra.Command) (*identity.Identity, error) {
	code, err := valueOrPrompt(cmd, flagCode, i18n.T(lang, i18n.KeySecondFactor))
	if err == nil {
		var id *identity.Identity
		id, err = app.flow.CompleteSecondFactor(cmd.Context(), code)
		if err == nil {
			return id, nil
		}
	}
	if cerr := app.flow.CancelSecondFactor(cmd.Context()); cerr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", auth.Message(cerr))
	}
	return nil, err
}

func printIdentity(cmd *cobra.Command, id *identity.Identity) error {
	if flagJSON {
		output.JSON(stdout(cmd), output.NewIdentityJSON(id))
		return nil
	}
	output.SignedIn(stdout(cmd), lang, id)
	return nil
}
