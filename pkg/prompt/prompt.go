// Package prompt provides the path collaborators used by the pipeline: fixed
// paths from flags and an interactive terminal prompt.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ogulcanaydogan/tracejson/pkg/pipeline"
)

// ErrNoPath is returned when no path was configured or entered.
var ErrNoPath = fmt.Errorf("%w: no path provided", pipeline.ErrCancelled)

// Static serves a fixed path for both input and output selection.
type Static struct {
	Path string
}

func (s Static) InputPath(context.Context) (string, error)  { return s.path() }
func (s Static) OutputPath(context.Context) (string, error) { return s.path() }

func (s Static) path() (string, error) {
	path := strings.TrimSpace(s.Path)
	if path == "" {
		return "", ErrNoPath
	}
	return path, nil
}

// Terminal asks the operator for paths, one line per answer. Input and the
// final pause share one buffered reader. Reads return as soon as ctx is
// cancelled; a read left pending by a cancellation is reused by the next one.
type Terminal struct {
	in               *bufio.Reader
	out              io.Writer
	defaultExtension string
	pending          chan answer
}

type answer struct {
	line string
	err  error
}

// NewTerminal returns a Terminal reading answers from in. defaultExtension is
// appended to output answers that have none.
func NewTerminal(in io.Reader, out io.Writer, defaultExtension string) *Terminal {
	return &Terminal{
		in:               bufio.NewReader(in),
		out:              out,
		defaultExtension: defaultExtension,
	}
}

func (t *Terminal) InputPath(ctx context.Context) (string, error) {
	return t.ask(ctx, "Select input file: ")
}

func (t *Terminal) OutputPath(ctx context.Context) (string, error) {
	path, err := t.ask(ctx, "Save output as: ")
	if err != nil {
		return "", err
	}
	return WithDefaultExtension(path, t.defaultExtension), nil
}

// Pause blocks until the operator presses ENTER, input ends or ctx is done.
func (t *Terminal) Pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fmt.Fprint(t.out, "Press ENTER to exit")
	_, err := t.readLine(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read pause answer: %w", err)
	}
	return nil
}

func (t *Terminal) ask(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(t.out, label)

	line, err := t.readLine(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read answer: %w", err)
	}
	path := strings.TrimSpace(line)
	if path == "" {
		return "", ErrNoPath
	}
	return path, nil
}

func (t *Terminal) readLine(ctx context.Context) (string, error) {
	if t.pending == nil {
		ch := make(chan answer, 1)
		go func() {
			line, err := t.in.ReadString('\n')
			ch <- answer{line: line, err: err}
		}()
		t.pending = ch
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-t.pending:
		t.pending = nil
		return a.line, a.err
	}
}

// WithDefaultExtension appends ext to path when path has no extension.
func WithDefaultExtension(path string, ext string) string {
	if ext == "" || filepath.Ext(path) != "" {
		return path
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path + ext
}
