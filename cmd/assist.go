package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/stigforge/pkg/adk"
	"github.com/user/stigforge/pkg/classify"
	"github.com/user/stigforge/pkg/config"
	"github.com/user/stigforge/pkg/wrappers"
)

var assistCmd = &cobra.Command{
	Use:   "assist",
	Short: "Start an interactive assistant that classifies checks and renders scripts",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		providerName := cfg.SelectedProvider
		if providerName == "" {
			providerName = config.DefaultProvider
		}

		apiKey := cfg.GetAPIKey(providerName)
		if apiKey == "" {
			fmt.Println("Error: API Key not found.")
			fmt.Println("Please run 'stigforge config setup' or set GOOGLE_API_KEY.")
			return
		}

		ctx := context.Background()
		modelName := cfg.SelectedModel
		fmt.Printf("Connecting to %s (Model: %s)...\n", providerName, modelName)

		provider, err := adk.NewProvider(ctx, providerName, apiKey, modelName)
		if err != nil {
			fmt.Printf("Error creating AI provider: %v\n", err)
			return
		}
		if closer, ok := provider.(interface{ Close() }); ok {
			defer closer.Close()
		}

		engine := &wrappers.Engine{Platform: cfg.ForcedPlatform()}
		if cfg.RulesFile != "" {
			if engine.Rules, err = classify.LoadRuleset(cfg.RulesFile); err != nil {
				fmt.Printf("Error loading rules: %v\n", err)
				return
			}
		}

		agent := adk.NewAgent(provider)
		agent.RegisterTool(&wrappers.ClassifyWrapper{Engine: engine})
		agent.RegisterTool(&wrappers.RenderWrapper{Engine: engine})
		agent.RegisterTool(&wrappers.TemplatesWrapper{Engine: engine})
		agent.SetSystemPrompt(adk.GetSystemPrompt())

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		fmt.Println("\n---------------------------------------------------------")
		fmt.Println("stigforge assistant ready.")
		fmt.Println("Example: 'Can this check be automated? Verify /etc/shadow is mode 0600'")
		fmt.Println("Example: 'Render a script for WN22-SO-000070'")
		fmt.Println("Type 'quit' or 'exit' to stop.")
		fmt.Println("---------------------------------------------------------")

		for {
			fmt.Print("\n> ")
			if !scanner.Scan() {
				break
			}
			input := scanner.Text()
			if input == "quit" || input == "exit" {
				break
			}
			if input == "" {
				continue
			}

			fmt.Print("Agent thinking... ")
			resp, err := agent.Chat(ctx, input, func(msg string) {
				fmt.Printf("\r\033[K[Progress]: %s\nAgent thinking... ", msg)
			})
			fmt.Print("\r\033[K")

			if err != nil {
				fmt.Printf("Error: %v\n", err)
			} else {
				fmt.Printf("\n[Agent]: %s\n", resp)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(assistCmd)
}
