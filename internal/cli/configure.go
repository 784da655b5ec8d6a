package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mentara/mentara/internal/config"
)

var (
	configureProvider string
	configureAPIKey   string
	configurePort     int
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write or update the configuration file",
	Long: `Write the configuration file, creating it with defaults when absent.
Only the values passed as flags are changed.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureProvider, "provider", "", "LLM provider (openai, anthropic)")
	configureCmd.Flags().StringVar(&configureAPIKey, "api-key", "", "provider API key")
	configureCmd.Flags().IntVar(&configurePort, "port", 0, "gateway listen port")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		// A broken or partial file still gets rewritten from defaults.
		cfg = config.DefaultConfig()
	}

	if configureProvider != "" {
		cfg.Agent.Provider = configureProvider
	}
	if configureAPIKey != "" {
		cfg.Agent.APIKey = configureAPIKey
	}
	if configurePort != 0 {
		cfg.Server.Port = configurePort
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println("Configuration saved")
	return nil
}
