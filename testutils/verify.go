package testutils

import (
	"go.uber.org/goleak"
)

// VerifyTestMain runs the tests of a package and fails if any goroutine outlives them.
func VerifyTestMain(m goleak.TestingM, opts ...goleak.Option) {
	opts = append(opts,
		// trace exporters start a worker on first use
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
	goleak.VerifyTestMain(m, opts...)
}
