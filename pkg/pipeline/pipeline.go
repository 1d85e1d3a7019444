package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/ogulcanaydogan/tracejson/pkg/reassemble"
	"github.com/ogulcanaydogan/tracejson/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrInputUnavailable wraps failures to open or read the input file.
	ErrInputUnavailable = errors.New("input unavailable")
	// ErrOutputUnwritable wraps failures to create or write the output file.
	ErrOutputUnwritable = errors.New("output unwritable")
	// ErrCancelled reports that no path was chosen.
	ErrCancelled = errors.New("path selection cancelled")
)

// InputProvider supplies the path of the trace file to read.
type InputProvider interface {
	InputPath(ctx context.Context) (string, error)
}

// OutputProvider supplies the path the artifact is written to.
type OutputProvider interface {
	OutputPath(ctx context.Context) (string, error)
}

// Options wires collaborators into Run. Only Input and Output are required.
type Options struct {
	Input    InputProvider
	Output   OutputProvider
	Marker   string
	Format   reassemble.Format
	Progress io.Writer
	Logger   *log.Logger
	Tracer   trace.Tracer
	Metrics  *telemetry.Metrics
	// Stdout receives the artifact when the output path is "-".
	Stdout io.Writer
}

// Report summarizes one run.
type Report struct {
	GeneratedAt    string `json:"generated_at"`
	InputPath      string `json:"input_path"`
	OutputPath     string `json:"output_path"`
	Marker         string `json:"marker"`
	Lines          int    `json:"lines"`
	Fragments      int    `json:"fragments"`
	RawBytes       int    `json:"raw_bytes"`
	SanitizedBytes int    `json:"sanitized_bytes"`
	OutputBytes    int    `json:"output_bytes"`
	State          string `json:"state"`
	ParseError     string `json:"parse_error,omitempty"`
}

type runner struct {
	opts Options
}

// Run reads the input, reassembles the tagged JSON payload and writes it out.
// A payload that does not parse is written as sanitized text with a warning;
// every other failure is returned.
func Run(ctx context.Context, opts Options) (Report, error) {
	if opts.Input == nil || opts.Output == nil {
		return Report{}, errors.New("pipeline: input and output providers are required")
	}
	if opts.Marker == "" {
		opts.Marker = reassemble.Marker
	}
	if opts.Format.Separators == "" {
		opts.Format.Separators = reassemble.SeparatorsSpaced
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(telemetry.TracerName)
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	r := runner{opts: opts}
	ctx, span := opts.Tracer.Start(ctx, "tracejson.run")
	defer span.End()

	report, err := r.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return report, err
}

func (r runner) run(ctx context.Context) (Report, error) {
	report := Report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Marker:      r.opts.Marker,
	}

	inputPath, err := selectPath(ctx, r.opts.Input.InputPath)
	if err != nil {
		return report, fmt.Errorf("select input: %w", err)
	}
	report.InputPath = inputPath
	r.progress("Selected file: %s", inputPath)

	var lines []string
	err = r.stage(ctx, "read", func(context.Context) error {
		var readErr error
		lines, readErr = reassemble.ReadFile(inputPath)
		if readErr != nil {
			return fmt.Errorf("%w: %w", ErrInputUnavailable, readErr)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	r.progress("Joining...")
	var extraction reassemble.Extraction
	r.span(ctx, "extract", func(ctx context.Context) {
		extraction = reassemble.Extract(lines, r.opts.Marker)
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("tracejson.lines", extraction.Lines),
			attribute.Int("tracejson.fragments", extraction.Fragments),
		)
	})
	report.Lines = extraction.Lines
	report.Fragments = extraction.Fragments
	report.RawBytes = len(extraction.Raw)
	r.opts.Metrics.ObserveExtraction(extraction.Lines, extraction.Fragments)

	r.progress("Cleaning")
	var sanitized string
	r.span(ctx, "sanitize", func(context.Context) {
		sanitized = reassemble.Sanitize(extraction.Raw)
	})
	report.SanitizedBytes = len(sanitized)

	r.progress("Verifying")
	var result reassemble.Result
	r.span(ctx, "verify", func(ctx context.Context) {
		result = reassemble.Normalize(sanitized, r.opts.Format)
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("tracejson.outcome", result.State.String()))
		if result.Err != nil {
			span.RecordError(result.Err)
		}
	})
	report.State = result.State.String()
	r.opts.Metrics.ObserveValidation(result.State.String())
	if result.State == reassemble.Validated {
		r.progress("Parsed successfully. Verified")
	} else {
		report.ParseError = result.Err.Error()
		r.progress("Warning: Could not parse json successfully")
		r.opts.Logger.Printf("warning: payload from %s is not valid json: %v (writing sanitized text)", inputPath, result.Err)
	}

	outputPath, err := selectPath(ctx, r.opts.Output.OutputPath)
	if err != nil {
		return report, fmt.Errorf("select output: %w", err)
	}
	report.OutputPath = outputPath

	err = r.stage(ctx, "write", func(context.Context) error {
		if writeErr := WriteOutput(outputPath, result.Output, r.opts.Stdout); writeErr != nil {
			return fmt.Errorf("%w: %w", ErrOutputUnwritable, writeErr)
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	report.OutputBytes = len(result.Output)
	r.opts.Metrics.SetOutputBytes(report.OutputBytes)
	r.progress("Written successfully")
	return report, nil
}

func (r runner) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := r.opts.Tracer.Start(ctx, "tracejson."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	r.opts.Metrics.ObserveStage(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// span runs a stage that cannot fail.
func (r runner) span(ctx context.Context, name string, fn func(context.Context)) {
	_ = r.stage(ctx, name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

func (r runner) progress(format string, args ...interface{}) {
	fmt.Fprintf(r.opts.Progress, format+"\n", args...)
}

func selectPath(ctx context.Context, provide func(context.Context) (string, error)) (string, error) {
	path, err := provide(ctx)
	if err != nil {
		return "", err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrCancelled
	}
	return path, nil
}
