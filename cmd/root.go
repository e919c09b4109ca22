package cmd

import (
	"fmt"

	"github.com/echocheck/echocheck/version"
	"github.com/spf13/cobra"
)

var (
	isDevEnv  bool
	isTestEnv bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd *cobra.Command

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd = createRootCmd()
	rootCmd.Version = fmt.Sprintf("v%s", version.Version)

	rootCmd.AddCommand(createServerCmd())
}

func createRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "echocheck",
		Short: `echocheck is a personal-safety check-in service.

Users define trips with a check-in interval, confirm they're safe as they go,
and can fan an SOS out to their trusted contacts over SMS & WhatsApp.`,
	}

	cmd.PersistentFlags().BoolVarP(&isDevEnv, "dev", "", false, "run in development mode")
	cmd.PersistentFlags().BoolVarP(&isTestEnv, "test", "", false, "run in test mode")

	return cmd
}
