package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/satecha/satecha/internal/chat"
	"github.com/satecha/satecha/internal/i18n"
	"github.com/satecha/satecha/internal/session"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask the security chatbot",
	Long: `Ask the security chatbot a question. Without a message, chat
reads questions line by line until EOF or "exit".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return ask(cmd, strings.Join(args, " "))
		}
		return chatLoop(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func ask(cmd *cobra.Command, message string) error {
	reply, err := app.chat.Send(cmd.Context(), message)
	if err != nil {
		var chatErr *chat.Error
		if errors.As(err, &chatErr) {
			return errors.New(chatErr.Message)
		}
		return fmt.Errorf("sending message: %w", err)
	}
	fmt.Fprintln(stdout(cmd), reply)
	return nil
}

// chatLoop keeps the session fresh while the conversation runs and says
// so when the provider ends it.
func chatLoop(cmd *cobra.Command) error {
	stop := app.client.StartRefresher(cmd.Context())
	defer stop()

	cancel := app.store.Watch(func(st session.State) {
		if st.Status == session.StatusSignedOut {
			fmt.Fprintln(cmd.ErrOrStderr(), i18n.T(lang, i18n.KeySignedOut))
		}
	})
	defer cancel()

	for {
		line, err := prompt(cmd, i18n.T(lang, i18n.KeyChatPrompt))
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := ask(cmd, line); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		}
	}
}
