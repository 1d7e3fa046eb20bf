package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/stigforge/pkg/adk"
	"github.com/user/stigforge/pkg/config"
	"github.com/user/stigforge/pkg/record"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Run: func(cmd *cobra.Command, args []string) {
		scanner := bufio.NewScanner(os.Stdin)
		ask := func(prompt string) string {
			fmt.Print(prompt)
			scanner.Scan()
			return strings.TrimSpace(scanner.Text())
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		fmt.Println("Welcome to the stigforge setup wizard")
		fmt.Println("-------------------------------------")

		// 1. Output
		fmt.Println("Step 1: Where should generated scripts go?")
		if dir := ask(fmt.Sprintf("Output directory [%s] > ", cfg.OutputDir)); dir != "" {
			cfg.OutputDir = dir
		}

		// 2. Platform
		fmt.Printf("\nStep 2: Force a platform? (%v, empty to detect per record)\n", record.Platforms)
		if p := ask("> "); p != "" {
			if record.ParsePlatform(p) == "" {
				fmt.Println("Unknown platform. Aborting.")
				return
			}
			cfg.Platform = p
		}

		// 3. Assistant
		fmt.Println("\nStep 3: Enter a Gemini API key for 'stigforge assist' (empty to skip)")
		apiKey := ask("> ")
		if apiKey != "" {
			cfg.SelectedProvider = config.DefaultProvider
			cfg.SetAPIKey(config.DefaultProvider, apiKey)
			cfg.SelectedModel = pickModel(ask, apiKey, cfg.SelectedModel)
		}

		// 4. Save Configuration
		fmt.Println("\nStep 4: Saving Configuration...")
		if err := cfg.Validate(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := config.SaveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}

		fmt.Println("-------------------------------------")
		fmt.Println("Setup Complete!")
		fmt.Printf("Output:   %s\n", cfg.OutputDir)
		if apiKey != "" {
			fmt.Printf("Model:    %s\n", cfg.SelectedModel)
		}
		fmt.Println("You can now run 'stigforge generate <checklist>'")
	},
}

// pickModel lists the provider's models and lets the user choose one,
// keeping current when the list cannot be fetched.
func pickModel(ask func(string) string, apiKey, current string) string {
	fmt.Println("Validating key and fetching available models...")
	ctx := context.Background()
	p, err := adk.NewProvider(ctx, config.DefaultProvider, apiKey, "")
	if err != nil {
		fmt.Printf("Warning: Could not initialize provider: %v\n", err)
		return current
	}
	if closer, ok := p.(interface{ Close() }); ok {
		defer closer.Close()
	}

	models, err := p.ListModels(ctx)
	if err != nil || len(models) == 0 {
		fmt.Printf("Warning: Could not fetch models from API: %v\n", err)
		if m := ask(fmt.Sprintf("Model name [%s] > ", current)); m != "" {
			return m
		}
		return current
	}

	for i, m := range models {
		fmt.Printf("%d. %s\n", i+1, m)
	}
	idx, err := strconv.Atoi(ask("Select Model (number) > "))
	if err != nil || idx < 1 || idx > len(models) {
		fmt.Println("Invalid selection. Using first available model.")
		return models[0]
	}
	return models[idx-1]
}

func init() {
	configCmd.AddCommand(setupCmd)
}
