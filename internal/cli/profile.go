package cli

import (
	"errors"
	"fmt"

	"github.com/satecha/satecha/internal/cli/output"
	"github.com/satecha/satecha/internal/i18n"
	"github.com/satecha/satecha/internal/identity"
	"github.com/satecha/satecha/internal/profile"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := app.projector.Current(cmd.Context())
		if err != nil {
			return profileError(err)
		}
		return printProfile(cmd, p)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change your username or language",
	RunE: func(cmd *cobra.Command, args []string) error {
		var prefs profile.Preferences
		if cmd.Flags().Changed("username") {
			prefs.Username = &flagUsername
		}
		if cmd.Flags().Changed("language") {
			tag, ok := i18n.Parse(flagUserLang)
			if !ok {
				return fmt.Errorf("unsupported language %q", flagUserLang)
			}
			prefs.Language = &tag
		}

		p, err := app.projector.UpdatePreferences(cmd.Context(), prefs)
		if err != nil {
			return profileError(err)
		}
		if !flagJSON {
			output.Message(stdout(cmd), languageFor(p), i18n.KeyProfileUpdated)
		}
		return printProfile(cmd, p)
	},
}

func init() {
	profileSetCmd.Flags().StringVar(&flagUsername, "username", "", "New username")
	profileSetCmd.Flags().StringVar(&flagUserLang, "language", "", "New language (en or my)")

	profileCmd.AddCommand(profileSetCmd)
	rootCmd.AddCommand(profileCmd)
}

func profileError(err error) error {
	var providerErr *identity.Error
	switch {
	case errors.Is(err, profile.ErrSignedOut):
		return errors.New(i18n.T(lang, i18n.KeyNotSignedIn))
	case errors.As(err, &providerErr):
		return errors.New(providerErr.Message)
	default:
		return err
	}
}

// languageFor prefers the profile language unless --lang was given.
func languageFor(p *profile.Profile) language.Tag {
	if flagLanguage != "" || env.Language != "" {
		return lang
	}
	return p.Language
}

func printProfile(cmd *cobra.Command, p *profile.Profile) error {
	if flagJSON {
		output.JSON(stdout(cmd), output.NewProfileJSON(p))
		return nil
	}
	output.Profile(stdout(cmd), languageFor(p), p)
	return nil
}
