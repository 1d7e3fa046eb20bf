package cmd

import (
	"github.com/spf13/cobra"

	"github.com/user/stigforge/pkg/classify"
	"github.com/user/stigforge/pkg/config"
	"github.com/user/stigforge/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the classify and render API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		srv := &server.Server{Platform: cfg.ForcedPlatform(), Workers: cfg.Workers}
		if cfg.RulesFile != "" {
			if srv.Rules, err = classify.LoadRuleset(cfg.RulesFile); err != nil {
				return err
			}
		}

		ctx, cancel := signalContext()
		defer cancel()
		return srv.Run(ctx, cfg.Server.Addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}
