package object

import "github.com/deepnoodle-ai/sme/errors"

// TypeErrorf returns a type error fault.
func TypeErrorf(format string, args ...any) *errors.Fault {
	return errors.Faultf(errors.E3001, "type error: "+format, args...)
}

// ZeroDivisionErrorf returns a division by zero fault.
func ZeroDivisionErrorf(format string, args ...any) *errors.Fault {
	return errors.Faultf(errors.E3002, format, args...)
}

// IndexErrorf returns an index out of bounds fault.
func IndexErrorf(format string, args ...any) *errors.Fault {
	return errors.Faultf(errors.E3003, "index error: "+format, args...)
}

// NilErrorf returns a nil reference fault.
func NilErrorf(format string, args ...any) *errors.Fault {
	return errors.Faultf(errors.E3004, format, args...)
}

// ArgsErrorf returns an invalid argument fault.
func ArgsErrorf(format string, args ...any) *errors.Fault {
	return errors.Faultf(errors.E3006, "args error: "+format, args...)
}
