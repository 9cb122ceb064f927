package vm

import (
	"fmt"

	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/object"
)

func checkCallArgs(mod *bytecode.Module, fn int, argc int) error {
	paramsCount := mod.Funcs[fn].NumParams
	if argc == paramsCount {
		return nil
	}
	msg := "function"
	if name := mod.FuncName(fn); name != "" {
		msg = fmt.Sprintf("%s %q", msg, name)
	}
	switch paramsCount {
	case 0:
		msg = fmt.Sprintf("%s takes 0 arguments (%d given)", msg, argc)
	case 1:
		msg = fmt.Sprintf("%s takes 1 argument (%d given)", msg, argc)
	default:
		msg = fmt.Sprintf("%s takes %d arguments (%d given)", msg, paramsCount, argc)
	}
	return object.ArgsErrorf("%s", msg)
}
