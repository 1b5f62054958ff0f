package rfdtests

import (
	"context"
	"errors"

	"github.com/rfd-conformance/rfd-test-harness/framework"
	"github.com/rfd-conformance/rfd-test-harness/framework/harness"
	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
)

// RFDTestContext is the application context value of every test scope.
type RFDTestContext struct {
	harness *harness.TestHarness
}

// RunSuite runs every suite that applies to the SUT's actors.
func RunSuite(
	ctx context.Context,
	h *harness.TestHarness,
	filter rfdtest.Filter,
	testLogger rfdtest.TestLogger,
) rfdtest.Results {
	capabilities := h.SUT().Capabilities
	if !capabilities.HasAny(actorCapabilities()...) {
		return rfdtest.Results{
			Failures: []rfdtest.TestResult{
				{
					Errors: []error{
						errors.New("system under test does not play any RFD actor"),
					},
				},
			},
		}
	}

	config := rfdtest.TestConfiguration{
		Filter:       filter,
		Capabilities: capabilities,
		TestLogger:   testLogger,
		Context:      RFDTestContext{harness: h},
		BaseContext:  ctx,
	}

	return rfdtest.Run(config, func(t *rfdtest.T) {
		if capabilities.Has(string(rfd.ActorFormManager)) {
			t.Run("Form Manager", doFormManagerTests)
		}
		if capabilities.Has(string(rfd.ActorFormReceiver)) {
			t.Run("Form Receiver", doFormReceiverTests)
		}
		if capabilities.Has(string(rfd.ActorFormArchiver)) {
			t.Run("Form Archiver", doFormArchiverTests)
		}
	})
}

func actorCapabilities() []string {
	var ret []string
	for _, a := range rfd.AllActors() {
		ret = append(ret, string(a))
	}
	return ret
}

// AllCapabilities lists every capability that enables some test, for PrintFilterDescription.
func AllCapabilities() framework.Capabilities {
	return framework.Capabilities{
		string(rfd.ActorFormManager),
		string(rfd.ActorFormReceiver),
		string(rfd.ActorFormArchiver),
		rfd.CapabilityClarifications,
	}
}
