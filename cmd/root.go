package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/stigforge/pkg/config"
	"github.com/user/stigforge/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "stigforge",
	Short: "Classify STIG checks and generate audit scripts",
	Long: `stigforge reads STIG and benchmark check records, decides which checks
can be automated, and renders bash, PowerShell or Python audit scripts that
share one exit-code and JSON result contract.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.DebugEnabled = DebugMode
		config.Path = ConfigPath
	},
}

var (
	DebugMode  bool
	ConfigPath string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "Config file (default ~/.stigforge/config.yaml)")
}
