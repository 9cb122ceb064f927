package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/hokaccha/go-prettyjson"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/sme"
	"github.com/deepnoodle-ai/sme/errors"
)

var red = color.New(color.FgRed).SprintFunc()

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newLogger writes to stderr: a console writer on terminals, JSON lines
// otherwise or when asked to.
func newLogger(cfg *Config, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	out := w
	if f, ok := w.(*os.File); ok && !cfg.LogJSON && isTerminal(f) {
		out = zerolog.ConsoleWriter{Out: w, NoColor: cfg.NoColor}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// printErrors writes one formatted diagnostic per collected error and
// returns the number written.
func printErrors(w io.Writer, err error, useColor bool) int {
	var errs []error
	if merr, ok := err.(*multierror.Error); ok {
		errs = merr.Errors
	} else {
		errs = []error{err}
	}
	formatter := errors.NewFormatter(useColor)
	n := 0
	for _, e := range errs {
		prefix := ""
		var fe *sme.FileError
		if errors.As(e, &fe) {
			e = fe.Err
			prefix = fe.Path
		}
		for _, d := range errors.Diagnostics(e) {
			formatted := d.ToFormatted()
			if formatted.Filename == "" {
				formatted.Filename = prefix
			}
			fmt.Fprintln(w, formatter.Format(formatted))
			n++
		}
	}
	return n
}

func writeJSON(w io.Writer, v any, useColor bool) error {
	var data []byte
	var err error
	if useColor {
		data, err = prettyjson.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
