package bytecode

// Stats contains statistics about a compiled module.
type Stats struct {
	// InstructionCount is the total number of instructions across functions
	// and fragments.
	InstructionCount int

	// CodeWords is the total size of all code in 16-bit words.
	CodeWords int

	// ConstantCount is the number of constants in the constant pool.
	ConstantCount int

	// VarCount is the number of component variables.
	VarCount int

	// FunctionCount is the number of functions.
	FunctionCount int

	// BindingCount is the number of bindings.
	BindingCount int

	// FragmentCount is the number of fragments, including the initial render
	// stream.
	FragmentCount int

	// StepCount is the total number of update steps.
	StepCount int
}
