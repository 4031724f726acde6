package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is overridden at build time via -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.3.0"

const envPrefix = "MEDBILLDOZER"

var (
	cfgFile  string
	verbose  bool
	logLevel string
	logJSON  bool

	restoreLogger func()
)

var rootCmd = &cobra.Command{
	Use:   "medbilldozer",
	Short: "Advisory review of medical bills, EOBs and receipts",
	Long: `medbilldozer reads medical bills, insurance EOBs, pharmacy and dental
receipts and FSA/HSA claim histories, extracts their facts and line items,
reconciles them across documents and flags likely billing issues with an
estimated savings figure.

Findings are advisory. They are suggestions to verify with your provider or
insurer, never determinations.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	PersistentPostRun: func(*cobra.Command, []string) {
		if restoreLogger != nil {
			restoreLogger()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the medbilldozer version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "medbilldozer %s\n", Version)
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $HOME/.medbilldozer/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log progress at info level")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn, error or quiet (overrides logging.level)")
	pf.BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
	_ = viper.BindPFlag("output.verbose", pf.Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// setupLogging picks the level from --log-level, then -v, then the config
func setupLogging(*cobra.Command, []string) error {
	level := viper.GetString("logging.level")
	switch {
	case logLevel != "":
		level = logLevel
	case verbose:
		level = "info"
	}
	_, restore, err := logging.New(level, logJSON || viper.GetBool("logging.json"))
	if err != nil {
		return err
	}
	restoreLogger = restore
	return nil
}

// initConfig layers defaults, the config file and MEDBILLDOZER_* env vars.
// Nested keys map to env names with "_" (analysis.timeout -> MEDBILLDOZER_ANALYSIS_TIMEOUT).
func initConfig() {
	registerDefaults()

	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	default:
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".medbilldozer"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		if verbose {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	case cfgFile != "" || !errors.As(err, &notFound):
		fmt.Fprintf(os.Stderr, "Warning: could not read config: %v\n", err)
	}
}
