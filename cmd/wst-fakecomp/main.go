// Command wst-fakecomp is a stand-in compositor answering the control
// protocol, for smoke runs of wst without a display.
package main

import (
	"os"

	"github.com/wfharness/wst/internal/fakecomp"
)

func main() {
	os.Exit(fakecomp.Main(os.Args[1:], os.Stderr))
}
