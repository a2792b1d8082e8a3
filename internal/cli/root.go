// Package cli implements the legiswatch command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "legiswatch",
	Short: "Legiswatch - daily legislative compliance alerts",
	Long: `Legiswatch watches state legislatures for bills matching your keywords,
summarizes each one with an LLM, and emits compliance alerts with the
deadline, required action and severity.

It is meant to run once a day under a scheduler (cron, Airflow, a
Kubernetes CronJob). The scheduler owns retries.

Exit codes: 0 success (including per-bill failures), 1 fatal error,
130 cancelled (partial results were emitted).`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// ExitError carries a process exit code through cobra
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// Execute runs the root command. Cancelling ctx (SIGINT, SIGTERM) stops
// the run in progress.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps an Execute error onto the process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "legiswatch %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.legiswatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if dir, err := configDir(); err == nil {
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	configureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configDir returns ~/.legiswatch
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".legiswatch"), nil
}

// configureEnv maps LEGISWATCH_<SECTION>_<KEY> onto every config key and
// binds the environment names operators already use for credentials
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("LEGISWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openstates.api_key", "LEGISWATCH_OPENSTATES_API_KEY", "OPENSTATES_KEY")
	_ = v.BindEnv("llm.api_key", "LEGISWATCH_LLM_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("llm.base_url", "LEGISWATCH_LLM_BASE_URL", "OPENAI_BASE_URL", "OLLAMA_BASE_URL")

	// A local endpoint names its model in MODEL, the hosted API in OPENAI_MODEL
	if os.Getenv("OPENAI_BASE_URL") != "" {
		_ = v.BindEnv("llm.model", "LEGISWATCH_LLM_MODEL", "MODEL", "OPENAI_MODEL")
	} else {
		_ = v.BindEnv("llm.model", "LEGISWATCH_LLM_MODEL", "OPENAI_MODEL", "MODEL")
	}
}

// loadConfig layers defaults, the config file, environment and bound flags
// into a model.Config
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()

	// Register every key so AutomaticEnv can override keys absent from the file
	defaults, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	setDefaults(v, "", defaults)
	for _, key := range optionalKeys {
		v.SetDefault(key, "")
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", model.ErrValidation, err)
	}
	return cfg, nil
}

// optionalKeys are omitted from the marshalled defaults when empty
var optionalKeys = []string{
	"openstates.api_key",
	"llm.api_key",
	"llm.base_url",
	"http.http_proxy",
	"http.https_proxy",
	"http.no_proxy",
	"metrics.pushgateway_url",
	"telemetry.otlp_endpoint",
}

func toMap(cfg *model.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal defaults: %w", err)
	}
	return m, nil
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			setDefaults(v, key, nested)
			continue
		}
		v.SetDefault(key, val)
	}
}
