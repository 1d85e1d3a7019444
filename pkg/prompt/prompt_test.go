package prompt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ogulcanaydogan/tracejson/pkg/pipeline"
)

func TestStatic(t *testing.T) {
	t.Parallel()

	path, err := Static{Path: " trace.log "}.InputPath(context.Background())
	if err != nil || path != "trace.log" {
		t.Fatalf("unexpected result %q %v", path, err)
	}

	_, err = Static{}.OutputPath(context.Background())
	if !errors.Is(err, ErrNoPath) || !errors.Is(err, pipeline.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestTerminalPrompts(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("in/trace.log\nout/result\n\n"), &out, ".json")

	input, err := term.InputPath(context.Background())
	if err != nil || input != "in/trace.log" {
		t.Fatalf("unexpected input %q %v", input, err)
	}
	output, err := term.OutputPath(context.Background())
	if err != nil || output != "out/result.json" {
		t.Fatalf("unexpected output %q %v", output, err)
	}
	if err := term.Pause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}

	want := "Select input file: Save output as: Press ENTER to exit"
	if out.String() != want {
		t.Fatalf("expected prompts %q got %q", want, out.String())
	}
}

func TestTerminalCancelled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "eof", input: ""},
		{name: "blank answer", input: "   \n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			term := NewTerminal(strings.NewReader(tt.input), &bytes.Buffer{}, ".json")
			if _, err := term.InputPath(context.Background()); !errors.Is(err, pipeline.ErrCancelled) {
				t.Fatalf("expected cancellation, got %v", err)
			}
		})
	}
}

func TestTerminalAnswerWithoutNewline(t *testing.T) {
	t.Parallel()

	term := NewTerminal(strings.NewReader("trace.log"), &bytes.Buffer{}, "")
	path, err := term.InputPath(context.Background())
	if err != nil || path != "trace.log" {
		t.Fatalf("unexpected result %q %v", path, err)
	}
	if err := term.Pause(context.Background()); err != nil {
		t.Fatalf("pause at eof: %v", err)
	}
}

func TestTerminalContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	term := NewTerminal(strings.NewReader("trace.log\n"), &bytes.Buffer{}, "")
	if _, err := term.InputPath(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWithDefaultExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		ext  string
		want string
	}{
		{path: "out", ext: ".json", want: "out.json"},
		{path: "out.txt", ext: ".json", want: "out.txt"},
		{path: "dir.d/out", ext: "json", want: "dir.d/out.json"},
		{path: "out", ext: "", want: "out"},
	}
	for _, tt := range tests {
		if got := WithDefaultExtension(tt.path, tt.ext); got != tt.want {
			t.Fatalf("WithDefaultExtension(%q, %q) = %q, want %q", tt.path, tt.ext, got, tt.want)
		}
	}
}

func TestTerminalCancelWhileWaiting(t *testing.T) {
	t.Parallel()

	reader, writer := io.Pipe()
	defer writer.Close()
	term := NewTerminal(reader, &bytes.Buffer{}, ".json")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() {
		_, err := term.InputPath(ctx)
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("prompt kept blocking after cancellation")
	}

	// The read started before cancellation still delivers the next answer.
	go func() { _, _ = io.WriteString(writer, "late.log\n") }()
	path, err := term.InputPath(context.Background())
	if err != nil || path != "late.log" {
		t.Fatalf("unexpected result %q %v", path, err)
	}
}

func TestPauseCancelWhileWaiting(t *testing.T) {
	t.Parallel()

	reader, writer := io.Pipe()
	defer writer.Close()
	term := NewTerminal(reader, &bytes.Buffer{}, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := term.Pause(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
