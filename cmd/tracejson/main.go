package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/ogulcanaydogan/tracejson/pkg/pipeline"
	"github.com/ogulcanaydogan/tracejson/pkg/prompt"
	"github.com/ogulcanaydogan/tracejson/pkg/reassemble"
	"github.com/ogulcanaydogan/tracejson/pkg/telemetry"
	"github.com/ogulcanaydogan/tracejson/pkg/tracecfg"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 1 && (args[0] == "--version" || args[0] == "version") {
		fmt.Fprintln(stdout, version)
		return 0
	}

	logger := log.New(stderr, "", log.LstdFlags)
	defaultConfigPath := filepath.Join("config", "tracejson.yaml")
	configPathValue := resolveConfigPath(args, defaultConfigPath)
	cfg := loadConfig(logger, configPathValue, configPathValue == defaultConfigPath)

	flags := flag.NewFlagSet("tracejson", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputPath := flags.String("input", "", "trace file to read (prompted when empty)")
	outPath := flags.String("out", "", "output path, '-' for stdout (prompted when empty)")
	configPath := flags.String("config", configPathValue, "tracejson config path")
	marker := flags.String("marker", cfg.Marker, "marker that starts a payload fragment")
	compact := flags.Bool("compact", false, "write ',' and ':' separators without spaces")
	ensureASCII := flags.Bool("ensure-ascii", cfg.Output.EnsureASCII, "escape non-ASCII characters in the output")
	summaryPath := flags.String("summary-out", "", "optional JSON run summary output path")
	metricsTextfile := flags.String("metrics-textfile", cfg.Metrics.Textfile, "optional prometheus textfile output path")
	otlpEndpoint := flags.String("otlp-endpoint", cfg.Telemetry.OTLPEndpoint, "OTLP gRPC endpoint host:port for spans")
	traceStdout := flags.Bool("trace-stdout", cfg.Telemetry.StdoutTrace, "print spans to stderr")
	pause := flags.Bool("pause", false, "wait for ENTER before exiting (default: on when the input is prompted)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(flags.Args(), " "))
		return 2
	}

	// Reload if the parsed config path differs from the pre-resolved path.
	if strings.TrimSpace(*configPath) != strings.TrimSpace(configPathValue) {
		cfg = loadConfig(logger, *configPath, false)
	}

	explicit := make(map[string]bool)
	flags.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if explicit["marker"] {
		cfg.Marker = *marker
	}
	if explicit["compact"] {
		cfg.Output.Separators = string(reassemble.SeparatorsSpaced)
		if *compact {
			cfg.Output.Separators = string(reassemble.SeparatorsCompact)
		}
	}
	if explicit["ensure-ascii"] {
		cfg.Output.EnsureASCII = *ensureASCII
	}
	if explicit["metrics-textfile"] {
		cfg.Metrics.Textfile = *metricsTextfile
	}
	if explicit["otlp-endpoint"] {
		cfg.Telemetry.OTLPEndpoint = *otlpEndpoint
	}
	if explicit["trace-stdout"] {
		cfg.Telemetry.StdoutTrace = *traceStdout
	}

	tp, shutdown, err := telemetry.SetupTracerProvider(ctx, telemetry.TracingConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Stdout:       cfg.Telemetry.StdoutTrace,
		Writer:       stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "setup tracer provider: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Printf("warning: tracer shutdown: %v", err)
		}
	}()

	terminal := prompt.NewTerminal(stdin, stdout, cfg.Output.DefaultExtension)
	var input pipeline.InputProvider = prompt.Static{Path: *inputPath}
	if strings.TrimSpace(*inputPath) == "" {
		input = terminal
	}
	var output pipeline.OutputProvider = prompt.Static{Path: *outPath}
	if strings.TrimSpace(*outPath) == "" {
		output = terminal
	}
	shouldPause := strings.TrimSpace(*inputPath) == ""
	if explicit["pause"] {
		shouldPause = *pause
	}

	progress := stdout
	if strings.TrimSpace(*outPath) == "-" {
		progress = stderr
	}

	metrics := telemetry.NewMetrics()
	report, err := pipeline.Run(ctx, pipeline.Options{
		Input:    input,
		Output:   output,
		Marker:   cfg.Marker,
		Format:   cfg.Format(),
		Progress: progress,
		Logger:   logger,
		Tracer:   tp.Tracer(telemetry.TracerName),
		Metrics:  metrics,
		Stdout:   stdout,
	})
	if err != nil {
		fmt.Fprintf(stderr, "tracejson failed: %v\n", err)
		return 1
	}

	if *summaryPath != "" {
		if err := writeSummaryJSON(*summaryPath, report); err != nil {
			fmt.Fprintf(stderr, "failed writing summary: %v\n", err)
			return 1
		}
	}
	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Printf("warning: failed writing metrics textfile %s: %v", cfg.Metrics.Textfile, err)
		}
	}

	if shouldPause {
		if err := terminal.Pause(ctx); err != nil {
			if ctx.Err() != nil {
				fmt.Fprintf(stderr, "tracejson interrupted: %v\n", err)
				return 1
			}
			logger.Printf("warning: %v", err)
		}
	}
	return 0
}

// loadConfig falls back to defaults on any error. A missing default config
// file is expected and not reported.
func loadConfig(logger *log.Logger, path string, isDefault bool) tracecfg.Config {
	cfg, err := tracecfg.Load(path)
	if err == nil {
		return cfg
	}
	if isDefault && errors.Is(err, fs.ErrNotExist) {
		return tracecfg.Default()
	}
	logger.Printf("warning: failed to load config %s: %v (using defaults)", path, err)
	return tracecfg.Default()
}

func resolveConfigPath(args []string, fallback string) string {
	for idx := 0; idx < len(args); idx++ {
		arg := strings.TrimSpace(args[idx])
		if (arg == "--config" || arg == "-config") && idx+1 < len(args) {
			return strings.TrimSpace(args[idx+1])
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimSpace(strings.TrimPrefix(arg, "--config="))
		}
		if strings.HasPrefix(arg, "-config=") {
			return strings.TrimSpace(strings.TrimPrefix(arg, "-config="))
		}
	}
	return fallback
}

func writeSummaryJSON(path string, report pipeline.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create summary output directory: %w", err)
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write summary output: %w", err)
	}
	return nil
}
