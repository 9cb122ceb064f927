package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/errors"
)

// recordingObserver is a test observer that records events.
type recordingObserver struct {
	NoOpObserver
	config  ObserverConfig
	Steps   []StepEvent
	Calls   []CallEvent
	Returns []ReturnEvent
	halt    bool
}

func (o *recordingObserver) Config() ObserverConfig {
	return o.config
}

func (o *recordingObserver) OnStep(event StepEvent) bool {
	o.Steps = append(o.Steps, event)
	return !o.halt
}

func (o *recordingObserver) OnCall(event CallEvent) bool {
	o.Calls = append(o.Calls, event)
	return true
}

func (o *recordingObserver) OnReturn(event ReturnEvent) bool {
	o.Returns = append(o.Returns, event)
	return true
}

const observedScript = `let total = 0
function double(n) {
  total = n * 2
}
function run() {
  double(21)
}`

func TestObserverCallsAndReturns(t *testing.T) {
	mod := module(t, observedScript, bytecode.WithSourceMap(true))
	observer := &recordingObserver{config: NewObserverConfig(StepAll)}
	_, err := New(mod, newEnv(mod), WithObserver(observer)).CallByName(context.Background(), "run", nil)
	require.NoError(t, err)

	require.Len(t, observer.Calls, 2)
	require.Equal(t, "run", observer.Calls[0].FunctionName)
	require.Equal(t, "Test", observer.Calls[0].Component)
	require.Equal(t, 1, observer.Calls[0].FrameDepth)
	require.Equal(t, "double", observer.Calls[1].FunctionName)
	require.Equal(t, 1, observer.Calls[1].ArgCount)
	require.Equal(t, 2, observer.Calls[1].FrameDepth)
	require.Equal(t, 7, observer.Calls[1].Location.Line)

	require.Len(t, observer.Returns, 2)
	require.Equal(t, "double", observer.Returns[0].FunctionName)
	require.Equal(t, "run", observer.Returns[1].FunctionName)
	require.Equal(t, 0, observer.Returns[1].FrameDepth)

	require.NotEmpty(t, observer.Steps)
	for _, step := range observer.Steps {
		require.NotEmpty(t, step.OpcodeName)
		require.NotEmpty(t, step.Function)
		require.Equal(t, "Test", step.Component)
	}
}

func TestObserverStepModes(t *testing.T) {
	mod := module(t, observedScript, bytecode.WithSourceMap(true))

	none := &recordingObserver{config: NewObserverConfig(StepNone)}
	_, err := New(mod, newEnv(mod), WithObserver(none)).CallByName(context.Background(), "run", nil)
	require.NoError(t, err)
	require.Empty(t, none.Steps)
	require.Len(t, none.Calls, 2)

	all := &recordingObserver{config: NewObserverConfig(StepAll)}
	_, err = New(mod, newEnv(mod), WithObserver(all)).CallByName(context.Background(), "run", nil)
	require.NoError(t, err)

	lines := &recordingObserver{config: NewObserverConfig(StepOnLine)}
	_, err = New(mod, newEnv(mod), WithObserver(lines)).CallByName(context.Background(), "run", nil)
	require.NoError(t, err)
	require.NotEmpty(t, lines.Steps)
	require.Less(t, len(lines.Steps), len(all.Steps))

	cfg := NewObserverConfig(StepSampled)
	cfg.SampleInterval = 2
	sampled := &recordingObserver{config: cfg}
	_, err = New(mod, newEnv(mod), WithObserver(sampled)).CallByName(context.Background(), "run", nil)
	require.NoError(t, err)
	require.Equal(t, len(all.Steps)/2, len(sampled.Steps))
}

func TestObserverHalt(t *testing.T) {
	mod := module(t, observedScript)
	env := newEnv(mod)
	observer := &recordingObserver{config: NewObserverConfig(StepAll), halt: true}
	_, err := New(mod, env, WithObserver(observer)).CallByName(context.Background(), "run", nil)
	require.Error(t, err)
	var fault *errors.Fault
	require.True(t, errors.As(err, &fault))
	require.Equal(t, errors.E3005, fault.Code)
	require.Len(t, observer.Steps, 1)
	require.Empty(t, env.stores)
}

func TestNormalizeConfig(t *testing.T) {
	cfg := NormalizeConfig(ObserverConfig{StepMode: StepSampled})
	require.Equal(t, 1, cfg.SampleInterval)
	cfg = NormalizeConfig(ObserverConfig{StepMode: StepAll})
	require.Equal(t, 0, cfg.SampleInterval)
}
