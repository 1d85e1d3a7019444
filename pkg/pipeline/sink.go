package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteOutput writes content verbatim to path, replacing any existing file.
// The path "-" writes to stdout instead.
func WriteOutput(path string, content string, stdout io.Writer) (err error) {
	writer, closeFn, err := openOutput(path, stdout)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := closeFn()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close output file: %w", closeErr)
		}
	}()

	if _, err := io.WriteString(writer, content); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "-" {
		return stdout, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return file, file.Close, nil
}
