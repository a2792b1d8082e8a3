package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ppiankov/legiswatch/internal/alert"
	"github.com/ppiankov/legiswatch/internal/logging"
	"github.com/ppiankov/legiswatch/internal/model"
	"github.com/ppiankov/legiswatch/internal/pipeline"
	"github.com/ppiankov/legiswatch/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	runTimeout time.Duration
	reportPath string
	showDigest bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily monitoring job once",
	Long: `Run fetches bills whose last action falls within the lookback window and
that match the configured keywords, summarizes each one, and emits one
compliance alert per bill to the configured sink.

Credentials come from the environment:
  OPENSTATES_KEY      OpenStates API key (required)
  OPENAI_API_KEY      LLM API key
  OPENAI_BASE_URL     OpenAI-compatible local endpoint (uses MODEL)
  OPENAI_MODEL        hosted model name

Example:
  legiswatch run
  legiswatch run --keywords "stablecoin,digital asset" --lookback-days 3
  legiswatch run --sink webhook --target https://hooks.slack.com/services/...
  legiswatch run --sink queue --target "redis://localhost:6379/0#compliance"
  legiswatch run --sink file --target ./alerts/ --digest`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.StringSlice("keywords", nil, "keywords to match (comma separated)")
	flags.StringSlice("jurisdictions", nil, "OpenStates jurisdiction ids")
	flags.Int("lookback-days", 0, "only bills with an action in the last N days")
	flags.String("sink", "", "alert sink: console, webhook, queue, file")
	flags.String("target", "", "sink target: URL, redis:// URL, or path")
	flags.Int("workers", 0, "concurrent bill summarizations")
	flags.Bool("no-documents", false, "summarize abstracts only, skip source documents")
	flags.Bool("no-cache", false, "disable the summary cache")
	flags.Bool("dedup", false, "skip bills already alerted in a previous run")

	flags.DurationVar(&runTimeout, "timeout", 0, "overall run deadline (0 = none)")
	flags.StringVar(&reportPath, "report", "", "write the run report as JSON to this path")
	flags.BoolVar(&showDigest, "digest", false, "print a severity digest to stderr")

	bind := map[string]string{
		"keywords":      "pipeline.keywords",
		"jurisdictions": "pipeline.jurisdictions",
		"lookback-days": "pipeline.lookback_days",
		"sink":          "sink.sink",
		"target":        "sink.target",
		"workers":       "concurrency.workers",
		"dedup":         "dedup.enabled",
	}
	for flag, key := range bind {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if noDocs, _ := cmd.Flags().GetBool("no-documents"); noDocs {
		cfg.Pipeline.FetchDocuments = false
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}

	logger := newLogger(cfg)

	ctx := cmd.Context()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, "legiswatch", Version, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					logger.Warn("trace flush failed", "error", err)
				}
			}()
		}
	}

	p, err := pipeline.NewFromConfig(cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("configure pipeline: %w", err)
	}

	result, runErr := p.Run(ctx)
	closeErr := p.Close()

	return finishRun(cmd.ErrOrStderr(), logger, result, runErr, closeErr)
}

// finishRun prints the summary line, writes the optional report and digest,
// and maps the outcome onto an exit code
func finishRun(stderr io.Writer, logger *slog.Logger, result *pipeline.RunResult, runErr, closeErr error) error {
	report := result.Report
	fmt.Fprintln(stderr, report.SummaryLine())

	if showDigest && len(result.Alerts) > 0 {
		fmt.Fprint(stderr, alert.Digest(result.Alerts))
	}

	if reportPath != "" {
		if err := writeReport(reportPath, report); err != nil {
			logger.Error("failed to write run report", "path", reportPath, "error", err)
		}
	}

	switch {
	case report.Status == model.RunPartial:
		return &ExitError{Code: 130, Err: errors.New("run cancelled, partial results emitted")}
	case runErr != nil:
		return &ExitError{Code: 1, Err: runErr}
	case closeErr != nil:
		return &ExitError{Code: 1, Err: fmt.Errorf("flush sink: %w", closeErr)}
	}
	return nil
}

func writeReport(path string, report *model.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func newLogger(cfg *model.Config) *slog.Logger {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.New(os.Stderr, level, cfg.Logging.Format)
}
