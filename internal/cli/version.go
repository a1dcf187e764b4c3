package cli

import (
	"fmt"

	"github.com/satecha/satecha/internal/cli/output"
	"github.com/spf13/cobra"
)

// Version is the CLI version, injected at build time:
//
//	go build -ldflags "-X github.com/satecha/satecha/internal/cli.Version=1.2.3"
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the CLI version and provider URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagJSON {
			output.JSON(stdout(cmd), map[string]string{"cliVersion": Version, "providerUrl": env.ProviderURL})
			return nil
		}
		fmt.Fprintf(stdout(cmd), "satecha %s (provider %s)\n", Version, env.ProviderURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
