// Package e2e provides end-to-end test infrastructure for the wst binary.
//
// Tests build wst and wst-fakecomp once and drive real runs against the
// fake compositor.
//
// # FakeConfigBuilder
//
// A fluent API for the fake compositor's behaviour file:
//
//	cfg := e2e.NewFakeConfigBuilder().
//	    WithApp("sleep", "sleeper").
//	    WithExitAfter(100 * time.Millisecond).
//	    Build()
//
// # Harness
//
// Provides test isolation with:
//   - a private temporary directory holding tests, logs and history
//   - a short runtime directory for compositor sockets
//   - a wst config with fast timings
//
//	h := e2e.NewHarness(t, binaries)
//	h.WriteFakeConfig(cfg)
//	h.WriteTest("xdg-shell/popup", scenario)
//	res := h.Run("run", h.TestsDir)
//
// # Process
//
// Background wst runs for signal tests:
//
//	p := h.Start("run", h.TestsDir)
//	p.Signal(os.Interrupt)
//	res := p.WaitWithTimeout(10 * time.Second)
package e2e
