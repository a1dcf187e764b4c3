// Package cli is the satecha command tree. Each invocation restores the
// saved provider session, runs one command against the client core and
// saves whatever session is left.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/satecha/satecha/internal/auth"
	"github.com/satecha/satecha/internal/chat"
	"github.com/satecha/satecha/internal/cli/config"
	"github.com/satecha/satecha/internal/i18n"
	"github.com/satecha/satecha/internal/identity/remote"
	"github.com/satecha/satecha/internal/profile"
	"github.com/satecha/satecha/internal/session"
	"github.com/satecha/satecha/internal/twofactor"
	"github.com/satecha/satecha/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

var (
	flagJSON     bool
	flagLanguage string
	flagVerbose  bool

	env  config.Env
	lang language.Tag
	app  *appContext
)

type appContext struct {
	providerURL string
	client      *remote.Client
	store       *session.Store
	flow        *auth.Flow
	projector   *profile.Projector
	chat        *chat.Client
	input       *bufio.Reader
}

var rootCmd = &cobra.Command{
	Use:   "satecha",
	Short: "Satecha CLI - security awareness training from the terminal",
	Long: `Satecha CLI signs you in to a Satecha provider and gives you the
account, two-factor and chatbot screens of the app in the terminal.

Get started:
  satecha signup --email you@example.com      Create an account
  satecha signin --email you@example.com      Sign in with a password
  satecha otp send --email you@example.com    Sign in with an emailed code
  satecha chat "how do I spot phishing?"      Ask the security chatbot`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Logs go to stderr so they never mix with command output.
		if flagVerbose {
			logger.SetOutput(cmd.ErrOrStderr())
		} else {
			logger.SetOutput(io.Discard)
		}

		var err error
		env, err = config.ParseEnv()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		pref := env.Language
		if flagLanguage != "" {
			pref = flagLanguage
		}
		lang = i18n.Match(pref)

		app, err = newApp(cmd.Context(), env, cmd.InOrStdin())
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&flagLanguage, "lang", "", "Display language (en or my)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Write structured logs to stderr")
}

func newApp(ctx context.Context, env config.Env, in io.Reader) (*appContext, error) {
	client := remote.NewClient(env.ProviderURL, remote.Options{AnonKey: env.AnonKey})

	stored, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if stored != nil && stored.ProviderURL == env.ProviderURL {
		client.Restore(stored.Session())
	}

	store := session.NewStore(client)
	store.Initialize(ctx)

	enroller := twofactor.NewEnroller(client, store, twofactor.Options{
		Issuer: env.TOTPIssuer,
		Strict: env.StrictTwoFactor,
	})

	return &appContext{
		providerURL: env.ProviderURL,
		client:      client,
		store:       store,
		flow:        auth.NewFlow(client, store, enroller, auth.Options{RequireSecondFactor: env.EnforceTwoFactor}),
		projector:   profile.NewProjector(client, store),
		chat:        chat.NewClient(env.ProviderURL),
		input:       bufio.NewReader(in),
	}, nil
}

// persist saves the session the provider still holds. A session that is
// held but not published, such as after a failed lookup, is left on disk
// untouched.
func (a *appContext) persist() error {
	sess := a.client.Session()
	switch {
	case sess == nil:
		return config.Clear()
	case a.store.State().SignedIn():
		return config.Save(config.FromSession(a.providerURL, sess))
	default:
		return nil
	}
}

func (a *appContext) close() {
	a.store.Close()
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if app != nil {
		if perr := app.persist(); perr != nil {
			logger.Error("session_persist_failed", perr, nil)
			if err == nil {
				err = fmt.Errorf("saving session: %w", perr)
			}
		}
		app.close()
		app = nil
	}
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// failure turns a flow error into the message shown to the user.
func failure(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(auth.Message(err))
}

// prompt reads one line, printing label first. Input ends at EOF too.
func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
	line, err := app.input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// valueOrPrompt returns value, asking for it when empty.
func valueOrPrompt(cmd *cobra.Command, value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return prompt(cmd, label)
}

func stdout(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
