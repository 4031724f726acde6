package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage medbilldozer configuration",
	Long: `Manage medbilldozer configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (MEDBILLDOZER_*, e.g. MEDBILLDOZER_ANALYSIS_DEFAULT_PROVIDER)
3. Config file (~/.medbilldozer/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, config file, env vars and flags. API keys are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		configFile := viper.ConfigFileUsed()
		if configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Current Configuration")
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()

		yamlData, err := yaml.Marshal(masked(cfg))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Println(string(yamlData))

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		fmt.Println("Configuration hierarchy (highest to lowest priority):")
		fmt.Println("  1. CLI flags")
		fmt.Println("  2. Environment variables (MEDBILLDOZER_*, OPENAI_API_KEY, ANTHROPIC_API_KEY,")
		fmt.Println("     GOOGLE_CLOUD_PROJECT, OLLAMA_BASE_URL)")
		fmt.Println("  3. Config file (~/.medbilldozer/config.yaml)")
		fmt.Println("  4. Defaults")
		fmt.Println()

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.medbilldozer/config.yaml with every available option.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := filepath.Join(home, ".medbilldozer")
		configPath := filepath.Join(configDir, "config.yaml")

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'medbilldozer config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		data, err := defaultConfigFile()
		if err != nil {
			return err
		}
		if err := os.WriteFile(configPath, data, 0o600); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  medbilldozer config show\n")
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n")
		fmt.Printf("  $EDITOR %s\n", configPath)
		fmt.Printf("\n")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// defaultConfigFile renders the commented default config.yaml
func defaultConfigFile() ([]byte, error) {
	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}

	header := `# medbilldozer configuration file
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (MEDBILLDOZER_*)
#   3. This config file
#   4. Built-in defaults
#
# Model backends stay disabled until enabled here or until their
# credentials are present in the environment.

`
	footer := `
# API keys (recommended to use environment variables instead):
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export GOOGLE_CLOUD_PROJECT=my-project   # Vertex AI Gemini, uses ADC
#   export OLLAMA_BASE_URL=http://localhost:11434   # MedGemma
`
	out := append([]byte(header), yamlData...)
	return append(out, footer...), nil
}

// registerDefaults registers every config key with viper so MEDBILLDOZER_*
// env vars resolve for keys absent from the config file
func registerDefaults() {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	setDefaults("", tree)
}

func setDefaults(prefix string, tree map[string]any) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			setDefaults(key, sub)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// loadConfig merges viper state over the defaults, then applies the
// well-known credential env vars
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnvCredentials(cfg, os.Getenv)
	return cfg, nil
}

// applyEnvCredentials fills credentials from the vendor env vars and enables
// the corresponding backend
func applyEnvCredentials(cfg *model.Config, getenv func(string) string) {
	if key := getenv("OPENAI_API_KEY"); key != "" {
		if cfg.Backends.OpenAI.APIKey == "" {
			cfg.Backends.OpenAI.APIKey = key
		}
		cfg.Backends.OpenAI.Enabled = true
	}
	if key := getenv("ANTHROPIC_API_KEY"); key != "" {
		if cfg.Backends.Anthropic.APIKey == "" {
			cfg.Backends.Anthropic.APIKey = key
		}
		cfg.Backends.Anthropic.Enabled = true
	}
	if project := getenv("GOOGLE_CLOUD_PROJECT"); project != "" {
		if cfg.Backends.Gemini.Project == "" {
			cfg.Backends.Gemini.Project = project
		}
		cfg.Backends.Gemini.Enabled = true
	}
	if baseURL := getenv("OLLAMA_BASE_URL"); baseURL != "" {
		cfg.Backends.MedGemma.BaseURL = baseURL
		cfg.Backends.MedGemma.Enabled = true
	}
}

// masked returns a copy of cfg with API keys hidden
func masked(cfg *model.Config) *model.Config {
	out := *cfg
	for _, bc := range []*model.BackendConfig{&out.Backends.OpenAI, &out.Backends.Anthropic, &out.Backends.Gemini, &out.Backends.MedGemma} {
		if bc.APIKey != "" {
			bc.APIKey = mask(bc.APIKey)
		}
	}
	return &out
}

func mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
