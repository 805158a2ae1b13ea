package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/iwvelando/land-cashflow/internal/config"
	"github.com/iwvelando/land-cashflow/internal/engine"
	"github.com/iwvelando/land-cashflow/internal/server"
	"github.com/iwvelando/land-cashflow/internal/store"
	"github.com/iwvelando/land-cashflow/pkg/aggregation"
	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/output"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
	"github.com/iwvelando/land-cashflow/pkg/validation"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var config zap.Config
	switch format {
	case "console":
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
	case "json":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	// Logs go to stderr by default so stdout carries only the schedule.
	config.OutputPaths = []string{"stderr"}

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		if file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		} else {
			_ = file.Close()
		}

		config.OutputPaths = []string{loggingConfig.OutputFile}
		config.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return config.Build()
}

// runOptions are the output settings after CLI overrides are applied.
type runOptions struct {
	format    string
	timeScale aggregation.TimeScale
	groupBy   aggregation.GroupBy
	out       string
}

// resolveOptions applies CLI overrides to the configured output settings.
func resolveOptions(conf config.OutputConfig, format, timeScale, groupBy, out string) (runOptions, error) {
	if format == "" {
		format = conf.Format
	}
	if format == "" {
		format = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(format); err != nil {
		return runOptions{}, err
	}

	if timeScale == "" {
		timeScale = conf.TimeScale
	}
	scale, err := aggregation.ParseTimeScale(timeScale)
	if err != nil {
		return runOptions{}, err
	}

	if groupBy == "" {
		groupBy = conf.GroupBy
	}
	group, err := aggregation.ParseGroupBy(groupBy)
	if err != nil {
		return runOptions{}, err
	}

	if out == "" {
		out = conf.File
	}
	return runOptions{format: format, timeScale: scale, groupBy: group, out: out}, nil
}

// loadInputs reads the run inputs from the configuration itself or from the
// store it names.
func loadInputs(ctx context.Context, logger *zap.Logger, conf *config.Configuration) (*engine.Inputs, error) {
	if conf.Source.Driver == "" || conf.Source.Driver == constants.SourceConfig {
		return conf.ToInputs()
	}

	src, err := store.Open(ctx, logger, conf.Source.Driver, conf.Source.DSN)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("failed to close source",
				zap.String("op", "main.loadInputs"),
				zap.Error(err),
			)
		}
	}()

	projectID := conf.Source.ProjectID
	if projectID == "" {
		projectID = conf.Project.ID
	}
	return src.LoadInputs(ctx, projectID)
}

// generate runs the engine once and writes the schedule.
func generate(ctx context.Context, logger *zap.Logger, conf *config.Configuration, opts runOptions, stdout io.Writer) error {
	in, err := loadInputs(ctx, logger, conf)
	if err != nil {
		return fmt.Errorf("loading inputs: %w", err)
	}

	s, err := engine.New(logger).Run(ctx, *in)
	if err != nil {
		return fmt.Errorf("computing cash flow: %w", err)
	}
	for _, warning := range s.Warnings {
		logger.Warn("Cash flow warning: "+warning,
			zap.String("op", "main.generate"),
		)
	}

	view, err := aggregation.Transform(s, opts.timeScale, opts.groupBy)
	if err != nil {
		return fmt.Errorf("aggregating schedule: %w", err)
	}

	if opts.out == "" {
		return output.Write(stdout, view, opts.format)
	}
	return writeFile(opts.out, view, opts.format)
}

// writeFile writes the schedule to path. A failed close is reported when the
// write itself succeeded, since it can mean buffered output was lost.
func writeFile(path string, s *schedule.Schedule, format string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing output file: %w", closeErr)
		}
	}()
	return output.Write(f, s, format)
}

// serve runs the HTTP API until SIGINT or SIGTERM.
func serve(logger *zap.Logger, cfg *server.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var src store.Source
	if cfg.Source.Driver != "" && cfg.Source.Driver != constants.SourceConfig {
		var err error
		src, err = store.Open(ctx, logger, cfg.Source.Driver, cfg.Source.DSN)
		if err != nil {
			return err
		}
		defer func() {
			_ = src.Close()
		}()
	}

	httpServer := &http.Server{
		Addr: cfg.Address,
		Handler: server.NewHandler(logger, server.Options{
			MaxUploadSize:  cfg.UploadSizeBytes(),
			Version:        version,
			Source:         src,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: cfg.Timeouts.ReadHeader,
		WriteTimeout:      cfg.Timeouts.Write,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			zap.String("op", "main.serve"),
			zap.String("address", cfg.Address),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server", zap.String("op", "main.serve"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func main() {
	// A missing .env is normal; the environment may already be set.
	_ = godotenv.Load()

	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json, yaml, msgpack, xlsx")
	timeScaleFlag := flag.String("time-scale", "", "time scale override: monthly, quarterly, annual, overall")
	groupByFlag := flag.String("group-by", "", "grouping override: none, summary, stage, category, phase")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	outFlag := flag.String("out", "", "write output to this file instead of stdout")
	serveFlag := flag.Bool("serve", false, "serve the HTTP API instead of running once")
	serverConfigLocation := flag.String("server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	flag.Parse()

	if *serveFlag {
		cfg, err := server.LoadConfig(*serverConfigLocation)
		if err != nil {
			fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *serverConfigLocation, err)
			os.Exit(1)
		}
		logger, err := initializeLogger(cfg.Logging, *logLevel)
		if err != nil {
			fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
			os.Exit(1)
		}
		defer func() {
			_ = logger.Sync()
		}()

		if err := serve(logger, cfg); err != nil {
			logger.Fatal("server failed",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
		return
	}

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	opts, err := resolveOptions(conf.Output, *outputFormatFlag, *timeScaleFlag, *groupByFlag, *outFlag)
	if err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	if err := generate(context.Background(), logger, conf, opts, os.Stdout); err != nil {
		logger.Fatal("failed to generate cash flow",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}
