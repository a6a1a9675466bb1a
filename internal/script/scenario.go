package script

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/wfharness/wst/internal/harness"
	"github.com/wfharness/wst/internal/ipc"
	"github.com/wfharness/wst/internal/status"
)

var (
	_ harness.Scenario    = (*Script)(nil)
	_ harness.GUIScenario = (*Script)(nil)
)

// IsGUI reports whether the scenario needs a graphical display.
func (s *Script) IsGUI() bool {
	return s.GUI
}

// Prepare skips the test when a required client is missing.
func (s *Script) Prepare(ctx *harness.Context) status.Outcome {
	return ctx.RequireClients(s.Requires...)
}

// Run executes the steps in order and stops at the first non-OK outcome.
func (s *Script) Run(ctx *harness.Context) (status.Outcome, error) {
	r := &run{ctx: ctx, pids: make(map[string]int)}
	for i, step := range s.Steps {
		kind := step.Kind()
		ctx.Logger.Debug("step", "n", i+1, "kind", kind)

		out, err := r.step(kind, step)
		if err != nil {
			return status.Outcome{}, fmt.Errorf("step %d (%s): %w", i+1, kind, err)
		}
		if !out.OK() {
			ctx.Logger.Info("step ended run", "n", i+1, "kind", kind, "status", out.Status)
			return out, nil
		}
	}
	return status.Pass(), nil
}

// run holds the state of one execution of a Script.
type run struct {
	ctx  *harness.Context
	pids map[string]int
}

func (r *run) step(kind string, step Step) (status.Outcome, error) {
	ch := r.ctx.Channel
	switch kind {
	case KindRun:
		pid, err := ch.Run(step.Run)
		if err != nil {
			return status.Outcome{}, err
		}
		if step.As != "" {
			r.pids[step.As] = pid
		}
		r.ctx.Logger.Debug("client started", "cmd", step.Run, "pid", pid)

	case KindSettle:
		r.ctx.Settle(*step.Settle)

	case KindWaitMs:
		r.ctx.SettleMillis(*step.WaitMs)

	case KindWaitClients:
		return r.waitClients(step)

	case KindMoveCursor:
		return status.Pass(), ch.MoveCursor(step.MoveCursor[0], step.MoveCursor[1])

	case KindClick:
		mode := ipc.ButtonMode(step.Click.Mode)
		if mode == "" {
			mode = ipc.ModeFull
		}
		return status.Pass(), ch.ClickButton(step.Click.Button, mode)

	case KindDrag:
		d := step.Drag
		release := d.Release == nil || *d.Release
		return status.Pass(), r.ctx.ClickAndDrag(d.Button, d.From[0], d.From[1], d.To[0], d.To[1], release)

	case KindPressKey:
		return status.Pass(), ch.PressKey(step.PressKey)

	case KindLayout:
		layout := make(map[string]ipc.Rect, len(step.Layout))
		for appID, b := range step.Layout {
			layout[appID] = ipc.Rect{X: b[0], Y: b[1], Width: b[2], Height: b[3]}
		}
		return status.Pass(), ch.LayoutViews(layout)

	case KindKill:
		pid, ok := r.pids[step.Kill]
		if !ok {
			return status.Outcome{}, fmt.Errorf("no client labelled %q", step.Kill)
		}
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return status.Outcome{}, fmt.Errorf("killing %s (pid %d): %w", step.Kill, pid, err)
		}

	case KindExpectViews:
		ids, err := r.ctx.AppIDs()
		if err != nil {
			return status.Outcome{}, err
		}
		if !equalSorted(ids, step.ExpectViews) {
			return status.Fail(describe(step.Message, "Unexpected views", ids)), nil
		}

	case KindExpectViewCount:
		ids, err := r.ctx.AppIDs()
		if err != nil {
			return status.Outcome{}, err
		}
		if len(ids) != *step.ExpectViewCount {
			msg := step.Message
			if msg == "" {
				msg = fmt.Sprintf("Expected %d views", *step.ExpectViewCount)
			}
			return status.Fail(describe(msg, "", ids)), nil
		}

	case KindScreenshot:
		if err := r.ctx.CaptureStage(step.Screenshot); err != nil {
			return status.New(status.Crashed, err.Error()), nil
		}

	default:
		return status.Outcome{}, fmt.Errorf("invalid step: %v", step.Kinds())
	}
	return status.Pass(), nil
}

func (r *run) waitClients(step Step) (status.Outcome, error) {
	expected := *step.WaitClients

	ok, err := r.ctx.WaitForClientCountN(expected, step.Attempts, step.Interval)
	if err != nil {
		return status.Outcome{}, err
	}
	if ok {
		return status.Pass(), nil
	}

	ids, err := r.ctx.AppIDs()
	if err != nil {
		return status.Outcome{}, err
	}
	return status.Fail(describe(step.Message, fmt.Sprintf("Expected %d clients", expected), ids)), nil
}

// describe joins a failure message and the observed app-ids.
func describe(msg, fallback string, ids []string) string {
	if msg == "" {
		msg = fallback
	}
	return fmt.Sprintf("%s: %q", msg, ids)
}

// equalSorted compares got, already sorted, with want in any order.
func equalSorted(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	counts := make(map[string]int, len(want))
	for _, w := range want {
		counts[w]++
	}
	for _, g := range got {
		if counts[g] == 0 {
			return false
		}
		counts[g]--
	}
	return true
}
