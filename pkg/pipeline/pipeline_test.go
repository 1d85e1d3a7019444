package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ogulcanaydogan/tracejson/pkg/reassemble"
	"github.com/ogulcanaydogan/tracejson/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fixedPath struct {
	path string
	err  error
}

func (f fixedPath) InputPath(context.Context) (string, error)  { return f.path, f.err }
func (f fixedPath) OutputPath(context.Context) (string, error) { return f.path, f.err }

type harness struct {
	progress bytes.Buffer
	logs     bytes.Buffer
	spans    *tracetest.SpanRecorder
	metrics  *telemetry.Metrics
}

func newHarness() *harness {
	return &harness{
		spans:   tracetest.NewSpanRecorder(),
		metrics: telemetry.NewMetrics(),
	}
}

func (h *harness) options(inputPath string, outputPath string) Options {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	return Options{
		Input:    fixedPath{path: inputPath},
		Output:   fixedPath{path: outputPath},
		Format:   reassemble.DefaultFormat(),
		Progress: &h.progress,
		Logger:   log.New(&h.logs, "", 0),
		Tracer:   tp.Tracer(telemetry.TracerName),
		Metrics:  h.metrics,
	}
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(data)
}

func TestRunEndToEnd(t *testing.T) {
	h := newHarness()
	input := writeInput(t, "header\nPROF_START|{\"id\":1,\nnoise\nPROF_START|\"name\":\"a\"}\n")
	output := filepath.Join(t.TempDir(), "out", "result.json")

	report, err := Run(context.Background(), h.options(input, output))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := readOutput(t, output); got != `{"id": 1, "name": "a"}` {
		t.Fatalf("unexpected output %q", got)
	}
	if report.State != "validated" || report.Fragments != 2 || report.Lines != 4 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.OutputBytes != len(`{"id": 1, "name": "a"}`) {
		t.Fatalf("unexpected output bytes %d", report.OutputBytes)
	}

	wantProgress := []string{
		"Selected file: " + input,
		"Joining...",
		"Cleaning",
		"Verifying",
		"Parsed successfully. Verified",
		"Written successfully",
	}
	if got := strings.Split(strings.TrimSpace(h.progress.String()), "\n"); strings.Join(got, "|") != strings.Join(wantProgress, "|") {
		t.Fatalf("unexpected progress %q", got)
	}
	if h.logs.Len() != 0 {
		t.Fatalf("expected no warnings, got %q", h.logs.String())
	}
}

func TestRunRecordsSpansAndMetrics(t *testing.T) {
	h := newHarness()
	input := writeInput(t, "PROF_START|[1,\nPROF_START|2]\n")
	output := filepath.Join(t.TempDir(), "result.json")

	if _, err := Run(context.Background(), h.options(input, output)); err != nil {
		t.Fatalf("run: %v", err)
	}

	names := make(map[string]bool)
	for _, span := range h.spans.Ended() {
		names[span.Name()] = true
	}
	for _, want := range []string{
		"tracejson.run",
		"tracejson.read",
		"tracejson.extract",
		"tracejson.sanitize",
		"tracejson.verify",
		"tracejson.write",
	} {
		if !names[want] {
			t.Fatalf("missing span %s in %v", want, names)
		}
	}

	expected := `
# HELP tracejson_validation_total Validation attempts by outcome.
# TYPE tracejson_validation_total counter
tracejson_validation_total{outcome="passthrough"} 0
tracejson_validation_total{outcome="validated"} 1
`
	if err := testutil.GatherAndCompare(h.metrics.Registry(), strings.NewReader(expected), "tracejson_validation_total"); err != nil {
		t.Fatalf("unexpected validation metrics: %v", err)
	}
}

func TestRunNoMarkersWritesEmptyFallback(t *testing.T) {
	h := newHarness()
	input := writeInput(t, "boot\nready\n")
	output := filepath.Join(t.TempDir(), "result.json")

	report, err := Run(context.Background(), h.options(input, output))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.State != "passthrough" {
		t.Fatalf("expected passthrough, got %s", report.State)
	}
	if got := readOutput(t, output); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
	if !strings.Contains(h.progress.String(), "Warning: Could not parse json successfully") {
		t.Fatalf("expected warning in progress, got %q", h.progress.String())
	}
	if !strings.Contains(h.logs.String(), "warning:") {
		t.Fatalf("expected logged warning, got %q", h.logs.String())
	}
}

func TestRunInvalidJSONFallsBack(t *testing.T) {
	h := newHarness()
	input := writeInput(t, "PROF_START|{not valid json\n")
	output := filepath.Join(t.TempDir(), "result.json")

	report, err := Run(context.Background(), h.options(input, output))
	if err != nil {
		t.Fatalf("parse failure must not be fatal: %v", err)
	}
	if got := readOutput(t, output); got != "{not valid json" {
		t.Fatalf("expected sanitized fallback, got %q", got)
	}
	if report.ParseError == "" {
		t.Fatal("expected parse error in report")
	}

	var verify sdktrace.ReadOnlySpan
	for _, span := range h.spans.Ended() {
		if span.Name() == "tracejson.verify" {
			verify = span
		}
	}
	if verify == nil {
		t.Fatal("missing verify span")
	}
	if len(verify.Events()) == 0 {
		t.Fatal("expected parse error recorded on verify span")
	}
}

func TestRunTabsDoNotSeparateTokens(t *testing.T) {
	h := newHarness()
	input := writeInput(t, "PROF_START|{\"flag\":\ttr\tue,\n\tPROF_START|\t\"n\":\t1}\n")
	output := filepath.Join(t.TempDir(), "result.json")

	if _, err := Run(context.Background(), h.options(input, output)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := readOutput(t, output); got != `{"flag": true, "n": 1}` {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRunOverwritesExistingOutput(t *testing.T) {
	h := newHarness()
	input := writeInput(t, "PROF_START|[]\n")
	output := filepath.Join(t.TempDir(), "result.json")
	if err := os.WriteFile(output, []byte("previous content that is longer"), 0o644); err != nil {
		t.Fatalf("seed output: %v", err)
	}

	if _, err := Run(context.Background(), h.options(input, output)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := readOutput(t, output); got != "[]" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestRunStdoutOutput(t *testing.T) {
	h := newHarness()
	input := writeInput(t, "PROF_START|{\"a\": [1, 2]}\n")
	opts := h.options(input, "-")
	opts.Format = reassemble.Format{Separators: reassemble.SeparatorsCompact, EnsureASCII: true}
	var stdout bytes.Buffer
	opts.Stdout = &stdout

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != `{"a":[1,2]}` {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
}

func TestRunFatalErrors(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, "PROF_START|{}\n")
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	tests := []struct {
		name   string
		input  InputProvider
		output OutputProvider
		want   error
	}{
		{
			name:   "missing input",
			input:  fixedPath{path: filepath.Join(dir, "missing.log")},
			output: fixedPath{path: filepath.Join(dir, "out.json")},
			want:   ErrInputUnavailable,
		},
		{
			name:   "cancelled input",
			input:  fixedPath{path: "  "},
			output: fixedPath{path: filepath.Join(dir, "out.json")},
			want:   ErrCancelled,
		},
		{
			name:   "cancelled output",
			input:  fixedPath{path: input},
			output: fixedPath{path: ""},
			want:   ErrCancelled,
		},
		{
			name:   "unwritable output",
			input:  fixedPath{path: input},
			output: fixedPath{path: filepath.Join(blocker, "out.json")},
			want:   ErrOutputUnwritable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			opts := h.options("", "")
			opts.Input = tt.input
			opts.Output = tt.output
			_, err := Run(context.Background(), opts)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRunProviderError(t *testing.T) {
	h := newHarness()
	opts := h.options("", "")
	boom := errors.New("dialog crashed")
	opts.Input = fixedPath{err: boom}

	if _, err := Run(context.Background(), opts); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestRunRequiresProviders(t *testing.T) {
	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected error without providers")
	}
}
