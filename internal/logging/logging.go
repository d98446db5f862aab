// Package logging builds the per-component *log.Logger values used across
// FitLife, all writing to one destination: stderr, or a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log destination.
type Options struct {
	// File, when set, receives all output with rotation. Empty means stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Verbose adds file:line to every entry.
	Verbose bool
}

// Factory hands out loggers that share one writer.
type Factory struct {
	out    io.Writer
	closer io.Closer
	flags  int
}

// NewFactory opens the destination described by opts.
func NewFactory(opts Options) (*Factory, error) {
	f := &Factory{out: os.Stderr, flags: log.LstdFlags}
	if opts.Verbose {
		f.flags |= log.Lshortfile
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		f.out = lj
		f.closer = lj
	}
	return f, nil
}

// NewWriterFactory returns a Factory writing to w, for tests and for
// callers that manage their own destination.
func NewWriterFactory(w io.Writer, flags int) *Factory {
	return &Factory{out: w, flags: flags}
}

// Logger returns a logger whose lines start with "[component] ".
func (f *Factory) Logger(component string) *log.Logger {
	return log.New(f.out, "["+component+"] ", f.flags)
}

// Writer returns the shared destination.
func (f *Factory) Writer() io.Writer {
	return f.out
}

// Close closes the log file, if any.
func (f *Factory) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}
