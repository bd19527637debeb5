// Package main is the caliper-fixtures command line.
//
// It generates the Caliper event sequence of a scripted learning session
// (reading, a quiz, grading) and writes the envelopes to stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alem-hub/caliper-fixtures/config"
	"github.com/alem-hub/caliper-fixtures/internal/application/builder"
	"github.com/alem-hub/caliper-fixtures/internal/application/scenario"
	"github.com/alem-hub/caliper-fixtures/internal/infrastructure/messaging"
	"github.com/alem-hub/caliper-fixtures/pkg/isoduration"
	"github.com/alem-hub/caliper-fixtures/pkg/logger"
	"github.com/alem-hub/caliper-fixtures/pkg/retry"
	"github.com/alem-hub/caliper-fixtures/pkg/timeutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "caliper-fixtures",
		Short:        "Generate Caliper assessment and outcome event fixtures",
		SilenceUsage: true,
	}

	cmd.AddCommand(durationCmd(), generateCmd(), versionCmd())
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// DURATION
// ══════════════════════════════════════════════════════════════════════════════

func durationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duration <start> <end>",
		Short: "Print the ISO-8601 duration between two instants",
		Example: "  caliper-fixtures duration 2015-09-15T10:15:00.000000Z 2015-09-15T11:05:00.000000Z\n" +
			"  PT50M00S",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := isoduration.Format(args[0], args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), d)
			return err
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE
// ══════════════════════════════════════════════════════════════════════════════

type generateOptions struct {
	configPath string
	format     string
	clock      string
	logLevel   string
	pretty     bool
	prettySet  bool
}

func generateCmd() *cobra.Command {
	var opts generateOptions

	c := &cobra.Command{
		Use:   "generate",
		Short: "Run the outcome scenario and write envelopes to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.prettySet = cmd.Flags().Changed("pretty")
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	c.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default: $"+config.ConfigFileEnv+")")
	c.Flags().StringVarP(&opts.format, "format", "f", "", "Envelope format: json, yaml or cbor")
	c.Flags().StringVar(&opts.clock, "clock", "", "Clock mode: fixed or system")
	c.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	c.Flags().BoolVar(&opts.pretty, "pretty", false, "Indent JSON output")
	return c
}

func runGenerate(ctx context.Context, stdout, stderr io.Writer, opts generateOptions) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.format != "" {
		cfg.Output.Format = opts.format
	}
	if opts.clock != "" {
		cfg.Fixture.Clock = config.ClockMode(opts.clock)
	}
	if opts.logLevel != "" {
		cfg.Observability.LogLevel = opts.logLevel
	}
	if opts.prettySet {
		cfg.Output.Pretty = opts.pretty
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg, stderr).WithRunID(uuid.NewString())
	log.Info("starting fixture generation",
		logger.String("app", cfg.App.Name),
		logger.String("version", cfg.App.Version),
		logger.String("env", string(cfg.App.Environment)),
		logger.String("clock", string(cfg.Fixture.Clock)),
		logger.String("format", cfg.Output.Format),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. BUILDER AND SENSOR
	// ─────────────────────────────────────────────────────────────────────────
	b, err := builder.New(cfg.Fixture)
	if err != nil {
		return err
	}

	format, err := messaging.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	enc, err := messaging.NewEncoder(format, cfg.Output.Pretty)
	if err != nil {
		return err
	}

	busCfg := messaging.BusConfig{
		SensorID:      b.SensorID(),
		Logger:        log,
		EnableMetrics: true,
	}
	if cfg.Fixture.Clock == config.ClockSystem {
		busCfg.Clock = timeutil.SystemClock{}
	} else {
		busCfg.SendTime = cfg.Fixture.EventSendTime
	}
	bus := messaging.NewBus(busCfg)
	defer func() { _ = bus.Close() }()

	writer := retry.New(
		retry.WithMaxAttempts(3),
		retry.WithRetryIf(func(err error) bool { return errors.Is(err, io.ErrShortWrite) }),
		retry.WithOnRetry(func(attempt int, err error, _ time.Duration) {
			log.Warn("retrying envelope write", logger.Int("attempt", attempt), logger.Err(err))
		}),
	)
	if err := bus.Subscribe("stdout", messaging.Retrying(messaging.NewEncodeHandler(stdout, enc), writer)); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCENARIO
	// ─────────────────────────────────────────────────────────────────────────
	result, err := scenario.NewOutcomeScenario(b, bus, cfg.School, log).Execute(ctx)
	if err != nil {
		return err
	}

	stats := bus.Metrics().Snapshot()
	log.Info("fixture generation complete",
		logger.Int64("envelopes", stats.EnvelopesPublished),
		logger.Int64("events", stats.EventsPublished),
		logger.Int64("handler_failures", stats.HandlerFailures),
		logger.String("started_at", result.StartedAt),
		logger.String("completed_at", result.CompletedAt),
	)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// setupLogger builds the run logger. Logs go to stderr so stdout carries only envelopes.
func setupLogger(cfg *config.Config, w io.Writer) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}

	return logger.New(logger.Options{
		Output:    w,
		Level:     level,
		Format:    logger.ParseFormat(cfg.Observability.LogFormat),
		AddCaller: cfg.IsDevelopment() && level == logger.LevelDebug,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// VERSION
// ══════════════════════════════════════════════════════════════════════════════

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "caliper-fixtures %s\n", version)
			return err
		},
	}
}
