package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/sme/errors"
)

// Reporter receives runtime faults. Faults never stop the scheduler; they
// are delivered here and the faulting binding is disabled.
type Reporter interface {
	Report(f *errors.Fault)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(f *errors.Fault)

func (fn ReporterFunc) Report(f *errors.Fault) { fn(f) }

// NewLogReporter returns a Reporter that logs faults at error level.
func NewLogReporter(logger zerolog.Logger) Reporter {
	return ReporterFunc(func(f *errors.Fault) {
		event := logger.Error().
			Str("code", string(f.Code)).
			Str("component", f.Component).
			Str("target", f.Target)
		if !f.Loc.IsZero() {
			event = event.Str("location", f.Loc.String())
		}
		event.Msg(f.Message)
	})
}
