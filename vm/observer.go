package vm

import (
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/op"
)

// StepMode selects which instructions produce OnStep events.
type StepMode uint8

const (
	// StepAll reports every instruction.
	StepAll StepMode = iota
	// StepNone reports no instructions; calls and returns only.
	StepNone
	// StepSampled reports every SampleInterval-th instruction.
	StepSampled
	// StepOnLine reports the first instruction of each source line.
	StepOnLine
)

const defaultSampleInterval = 1000

// ObserverConfig is read once, when an observer is attached.
type ObserverConfig struct {
	StepMode StepMode
	// SampleInterval applies to StepSampled. Values below 1 mean 1.
	SampleInterval int
	ObserveCalls   bool
	ObserveReturns bool
}

// NewObserverConfig returns a config for mode with call and return events
// enabled.
func NewObserverConfig(mode StepMode) ObserverConfig {
	return ObserverConfig{
		StepMode:       mode,
		SampleInterval: defaultSampleInterval,
		ObserveCalls:   true,
		ObserveReturns: true,
	}
}

// NormalizeConfig clamps the sample interval.
func NormalizeConfig(cfg ObserverConfig) ObserverConfig {
	if cfg.StepMode == StepSampled && cfg.SampleInterval < 1 {
		cfg.SampleInterval = 1
	}
	return cfg
}

// Observer receives execution events from the machine that runs handlers,
// derived expressions and binding expressions. Callbacks run synchronously
// on the executing goroutine. Returning false from any callback halts the
// running code with an E3005 fault, which the scheduler reports like any
// other fault.
type Observer interface {
	Config() ObserverConfig
	OnStep(event StepEvent) bool
	OnCall(event CallEvent) bool
	OnReturn(event ReturnEvent) bool
}

// StepEvent describes the instruction about to execute.
type StepEvent struct {
	Component  string
	Function   string
	IP         int
	Opcode     op.Code
	OpcodeName string
	Location   errors.SourceLocation
	StackDepth int
	FrameDepth int
}

// CallEvent describes a function activation. Location is the call site,
// zero for the entry function.
type CallEvent struct {
	Component    string
	FunctionName string
	ArgCount     int
	Location     errors.SourceLocation
	FrameDepth   int
}

// ReturnEvent describes a function return. FrameDepth is the depth after
// the frame is popped.
type ReturnEvent struct {
	Component    string
	FunctionName string
	Location     errors.SourceLocation
	FrameDepth   int
}

// NoOpObserver accepts every event. Embed it to implement only some
// callbacks; override Config, since the default is StepAll.
type NoOpObserver struct{}

func (NoOpObserver) Config() ObserverConfig    { return NewObserverConfig(StepAll) }
func (NoOpObserver) OnStep(StepEvent) bool     { return true }
func (NoOpObserver) OnCall(CallEvent) bool     { return true }
func (NoOpObserver) OnReturn(ReturnEvent) bool { return true }

var _ Observer = NoOpObserver{}
