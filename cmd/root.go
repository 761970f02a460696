// Package cmd defines and implements the CLI commands for the nextfest
// executable.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zolointo/next-fext-randomizer/internal/logging"
	pkgconfig "github.com/zolointo/next-fext-randomizer/pkg/config"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nextfest",
		Short: "Generates browsable trailer pages for a list of Steam games.",
		Long: `nextfest fetches store metadata and trailer stream links for a list of
Steam appids and renders them into static HTML pages with embedded
MPEG-DASH players. Trailer links are captured by driving a headless
browser against each store page and intercepting the manifest request.`,
	}

	cobra.OnInitialize(initConfig)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	cmd.AddCommand(newGenerateCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	pkgconfig.InitConfig()
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
