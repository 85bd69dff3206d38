package cli

import (
	"fmt"

	"github.com/fika-labs/agentrelay/internal/config"
	"github.com/spf13/cobra"
)

var (
	configureProvider    string
	configureAPIKey      string
	configureModel       string
	configureToolVersion string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the server configuration file",
	Long: `Write the Agent Relay configuration file, starting from the
defaults and applying any flags given. Existing settings in the file
are preserved.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureProvider, "provider", "", "default model provider (anthropic, openai)")
	configureCmd.Flags().StringVar(&configureAPIKey, "api-key", "", "API key for the selected provider")
	configureCmd.Flags().StringVar(&configureModel, "model", "", "default model for new sessions")
	configureCmd.Flags().StringVar(&configureToolVersion, "tool-version", "", "default tool version for new sessions")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if configureProvider != "" {
		cfg.Providers.Default = configureProvider
	}
	if configureModel != "" {
		cfg.Defaults.Model = configureModel
	}
	if configureToolVersion != "" {
		cfg.Defaults.ToolVersion = configureToolVersion
	}

	validator := config.NewValidator()
	if configureAPIKey != "" {
		if err := validator.ValidateAPIKey(configureAPIKey, cfg.Providers.Default); err != nil {
			return err
		}
		switch cfg.Providers.Default {
		case "openai":
			cfg.Providers.OpenAI.APIKey = configureAPIKey
		default:
			cfg.Providers.Anthropic.APIKey = configureAPIKey
		}
	}

	if err := validator.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	path, err := loader.Path()
	if err != nil {
		return err
	}
	fmt.Printf("Configuration saved to: %s\n", path)
	fmt.Println("Start the server with: agentrelay serve")
	return nil
}
