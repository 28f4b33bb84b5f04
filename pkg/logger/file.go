package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const runLogMode = 0644

// OpenRunLog opens the append-only run log at path, creating it and its
// parent directory when needed. Existing content is never truncated.
func OpenRunLog(fs afero.Fs, path string) (afero.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, runLogMode)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	return f, nil
}

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options selects the log destinations for New.
type Options struct {
	// Fs is the filesystem the run log is opened on. Defaults to the OS.
	Fs afero.Fs
	// Console receives every line. Never closed by the logger.
	Console io.Writer
	// File is the append-only run log path. Empty disables it.
	File string
	// Format is FormatText (default) or FormatJSON.
	Format string
}

// New returns a logger writing to the console and, when opts.File is set,
// appending to the run log. Closing the returned logger closes the file.
func New(opts Options) (Logger, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, nopCloser{opts.Console})
	}
	if opts.File != "" {
		f, err := OpenRunLog(opts.Fs, opts.File)
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
	}
	switch opts.Format {
	case "", FormatText:
		loggers := make([]Logger, 0, len(writers))
		for _, w := range writers {
			loggers = append(loggers, NewWriterLogger(w))
		}
		return NewMultiLogger(loggers...), nil
	case FormatJSON:
		return NewZapLogger(writers...), nil
	default:
		for _, w := range writers {
			if c, ok := w.(io.Closer); ok {
				c.Close()
			}
		}
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
}

// nopCloser keeps the logger from closing stdout.
type nopCloser struct {
	io.Writer
}
