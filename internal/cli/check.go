package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/legiswatch/internal/document"
	"github.com/ppiankov/legiswatch/internal/llm"
	"github.com/ppiankov/legiswatch/internal/logging"
	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/ppiankov/legiswatch/internal/openstates"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// checkCmd verifies configuration and connectivity without running the job
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration, credentials and endpoints",
	Long: `Check validates the configuration, then sends one request to the
OpenStates API and one to the LLM endpoint. Use it as a preflight task
before the scheduled run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		return runCheck(ctx, cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(ctx context.Context, out io.Writer, cfg *model.Config) error {
	report := func(name string, err error) {
		if err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "✓ %s\n", name)
	}

	if err := cfg.Validate(); err != nil {
		report("configuration", err)
		return err
	}
	report("configuration", nil)
	fmt.Fprintf(out, "  OpenStates key: %s\n", logging.MaskKey(cfg.OpenStates.APIKey))
	fmt.Fprintf(out, "  LLM: %s %s (key %s)\n", cfg.LLM.Provider, cfg.LLM.Model, logging.MaskKey(cfg.LLM.APIKey))

	httpClient := document.NewHTTPClient(cfg.HTTP)

	client := openstates.NewClient(httpClient, cfg.OpenStates.Endpoint, cfg.OpenStates.APIKey, cfg.HTTP.UserAgent, nil)
	apiErr := client.Ping(ctx)
	report("OpenStates API "+cfg.OpenStates.Endpoint, apiErr)

	llmConfig := llm.ConfigFromModel(cfg)
	provider, llmErr := llm.NewProvider(llmConfig)
	if llmErr == nil {
		llmErr = provider.CheckAvailable(ctx)
	}
	report("LLM endpoint "+llm.EndpointURL(llmConfig), llmErr)

	return errors.Join(apiErr, llmErr)
}
