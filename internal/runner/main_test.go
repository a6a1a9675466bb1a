package runner

import (
	"os"
	"testing"

	"github.com/wfharness/wst/internal/fakecomp"
)

const fakeCompositorEnv = "WST_RUNNER_FAKECOMP"

func TestMain(m *testing.M) {
	if os.Getenv(fakeCompositorEnv) == "1" {
		os.Exit(fakecomp.Main(os.Args[1:], os.Stderr))
	}
	os.Exit(m.Run())
}
