package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/stigforge/pkg/classify"
	"github.com/user/stigforge/pkg/config"
	"github.com/user/stigforge/pkg/logging"
	"github.com/user/stigforge/pkg/pipeline"
	"github.com/user/stigforge/pkg/record"
	"github.com/user/stigforge/pkg/report"
	"github.com/user/stigforge/pkg/store"
)

// batchFlags registers the flags shared by generate, stub and classify.
// Unset flags fall back to the config file.
func batchFlags(c *cobra.Command) {
	c.Flags().StringP("out", "o", "", "Output directory for scripts")
	c.Flags().IntP("workers", "w", 0, "Number of workers")
	c.Flags().StringP("platform", "p", "", "Force platform (linux, windows, database, network)")
	c.Flags().String("rules", "", "Custom rule table (YAML)")
	c.Flags().String("export-json", "", "Write the classification stream as JSON")
	c.Flags().String("export-csv", "", "Write the classification stream as CSV")
	c.Flags().Bool("dry-run", false, "Render without writing scripts")
	c.Flags().Bool("no-color", false, "Disable coloured output")
	c.Flags().String("database-url", "", "Save the run to this PostgreSQL database")
}

// loadBatchConfig reads the config file and applies the command's flags
// over it.
func loadBatchConfig(c *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	f := c.Flags()
	if v, _ := f.GetString("out"); v != "" {
		cfg.OutputDir = v
	}
	if v, _ := f.GetInt("workers"); v > 0 {
		cfg.Workers = v
	}
	if v, _ := f.GetString("platform"); v != "" {
		cfg.Platform = v
	}
	if v, _ := f.GetString("rules"); v != "" {
		cfg.RulesFile = v
	}
	if v, _ := f.GetString("export-json"); v != "" {
		cfg.Export.JSON = v
	}
	if v, _ := f.GetString("export-csv"); v != "" {
		cfg.Export.CSV = v
	}
	if v, _ := f.GetString("database-url"); v != "" {
		cfg.DatabaseURL = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runBatch loads records from paths and runs them in mode, then exports,
// persists and summarizes the result.
func runBatch(c *cobra.Command, paths []string, mode pipeline.Mode) error {
	cfg, err := loadBatchConfig(c)
	if err != nil {
		return err
	}

	var rules *classify.Ruleset
	if cfg.RulesFile != "" {
		if rules, err = classify.LoadRuleset(cfg.RulesFile); err != nil {
			return err
		}
	}

	records, warnings, err := record.LoadPaths(paths)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logging.Warnf("%v", w)
	}
	if len(records) == 0 {
		return errors.New("no check records found")
	}

	ctx, cancel := signalContext()
	defer cancel()

	dryRun, _ := c.Flags().GetBool("dry-run")
	res, runErr := pipeline.Run(ctx, records, pipeline.Options{
		Mode:     mode,
		OutDir:   cfg.OutputDir,
		Workers:  cfg.Workers,
		Platform: cfg.ForcedPlatform(),
		Rules:    rules,
		DryRun:   dryRun || mode == pipeline.ModeClassify,
	})
	if res == nil {
		return runErr
	}

	for _, path := range []string{cfg.Export.JSON, cfg.Export.CSV} {
		if path == "" {
			continue
		}
		if err := report.Export(path, res.Classifications()); err != nil {
			logging.Errorf("export %s: %v", path, err)
		} else {
			logging.Infof("wrote %s", path)
		}
	}

	if cfg.DatabaseURL != "" {
		if err := saveRun(cfg.DatabaseURL, res); err != nil {
			logging.Errorf("save run: %v", err)
		}
	}

	noColor, _ := c.Flags().GetBool("no-color")
	if err := report.NewPrinter(os.Stdout, noColor).Summary(res); err != nil {
		return err
	}
	return runErr
}

func saveRun(url string, res *pipeline.Result) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := store.Connect(ctx, url, store.DefaultOptions())
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		return err
	}
	if err := s.SaveRun(ctx, res); err != nil {
		return err
	}
	fmt.Printf("Run %s saved to database.\n", res.RunID)
	return nil
}
