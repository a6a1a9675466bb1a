package harness

import "github.com/wfharness/wst/internal/status"

// Scenario is one test definition. It owns no process or channel state and
// receives both through the Context at call time.
type Scenario interface {
	// Prepare checks preconditions before the compositor is started.
	// A non-OK outcome ends the run without spawning anything.
	Prepare(ctx *Context) status.Outcome

	// Run drives the compositor. A returned error is a fault and ends the
	// run as CRASHED; an expected mismatch is reported as an Outcome.
	Run(ctx *Context) (status.Outcome, error)
}

// GUIScenario is implemented by scenarios that declare whether they need a
// graphical display.
type GUIScenario interface {
	IsGUI() bool
}

// IsGUI reports the GUI classification of sc. Scenarios without one are not GUI tests.
func IsGUI(sc Scenario) bool {
	if g, ok := sc.(GUIScenario); ok {
		return g.IsGUI()
	}
	return false
}

// NotImplemented is the message of the default Run outcome.
const NotImplemented = "Test for not implemented?"

// Base supplies default Prepare and Run implementations for embedding.
type Base struct{}

func (Base) Prepare(*Context) status.Outcome {
	return status.Pass()
}

func (Base) Run(*Context) (status.Outcome, error) {
	return status.Skip(NotImplemented), nil
}

// Funcs builds a Scenario from functions. Nil functions fall back to Base.
type Funcs struct {
	PrepareFunc func(*Context) status.Outcome
	RunFunc     func(*Context) (status.Outcome, error)
	GUI         bool
}

func (f Funcs) Prepare(ctx *Context) status.Outcome {
	if f.PrepareFunc == nil {
		return Base{}.Prepare(ctx)
	}
	return f.PrepareFunc(ctx)
}

func (f Funcs) Run(ctx *Context) (status.Outcome, error) {
	if f.RunFunc == nil {
		return Base{}.Run(ctx)
	}
	return f.RunFunc(ctx)
}

func (f Funcs) IsGUI() bool {
	return f.GUI
}
