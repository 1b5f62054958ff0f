package rfdtests

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/archive"
	"github.com/rfd-conformance/rfd-test-harness/framework/harness"
	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/serviceinfo"
	"github.com/rfd-conformance/rfd-test-harness/simulator"
)

// simulatorEndpoints are configured the way the suites expect a conforming SUT to behave. The
// Form Manager has no default test, so unknown form IDs are rejected.
func simulatorEndpoints() []simulator.EndpointConfig {
	ids := serviceinfo.DefaultFormIDs()
	return []simulator.EndpointConfig{
		{
			Name:  "FormManager",
			Actor: rfd.ActorFormManager,
			Path:  "/FormManager",
			Tests: simulator.TestsConfig{
				Forms: map[string]simulator.TestRef{
					ids.Retrieve: {Test: simulator.TestStaticURL, Params: simulator.Params{"url": "http://forms.example.org/f1"}},
					ids.Prepop:   {Test: simulator.TestPrepopAge, Params: simulator.Params{"url": "http://forms.example.org/f2"}},
					ids.OrgID: {Test: simulator.TestClarifications,
						Params: simulator.Params{"urls": []string{"http://forms.example.org/c1", "http://forms.example.org/c2"}}},
				},
			},
		},
		{
			Name:  "FormReceiver",
			Actor: rfd.ActorFormReceiver,
			Path:  "/FormReceiver",
			Tests: simulator.TestsConfig{Default: &simulator.TestRef{Test: simulator.TestAcceptSubmit}},
		},
		{
			Name:  "FormArchiver",
			Actor: rfd.ActorFormArchiver,
			Path:  "/FormArchiver",
			Tests: simulator.TestsConfig{Default: &simulator.TestRef{Test: simulator.TestArchive}},
		},
	}
}

func withSimulators(t *testing.T, action func(urls map[string]string)) {
	store, err := archive.NewFileStore(t.TempDir())
	require.NoError(t, err)
	registry := simulator.NewRegistry("rfd", "", simulator.Dependencies{Archive: store}, nil)
	httphelpers.WithServer(registry, func(server *httptest.Server) {
		registry.SetBaseURL(server.URL)
		urls := make(map[string]string)
		for _, config := range simulatorEndpoints() {
			info, err := registry.Add(config)
			require.NoError(t, err)
			urls[config.Name] = info.URL
		}
		action(urls)
	})
}

func runAgainst(t *testing.T, url string, actors ...string) rfdtest.Results {
	sut, err := serviceinfo.New("simulator", url, actors, serviceinfo.FormIDs{})
	require.NoError(t, err)
	h, err := harness.NewTestHarness(context.Background(), harness.Config{SUT: sut, StartupWait: time.Second})
	require.NoError(t, err)
	defer h.Close()
	return RunSuite(context.Background(), h, nil, nil)
}

func failureIDs(results []rfdtest.TestResult) []string {
	var ret []string
	for _, r := range results {
		ret = append(ret, r.TestID.String())
	}
	return ret
}

func TestFormManagerSuitePassesAgainstSimulator(t *testing.T) {
	withSimulators(t, func(urls map[string]string) {
		results := runAgainst(t, urls["FormManager"], "form-manager", rfd.CapabilityClarifications)
		assert.True(t, results.OK(), "failures: %v", failureIDs(results.Failures))
		assert.Empty(t, failureIDs(results.NonCriticalFailures))

		var ran []string
		for _, r := range results.Tests {
			ran = append(ran, r.TestID.String())
		}
		assert.Contains(t, ran, "Form Manager/pre-population/age 85")
		assert.Contains(t, ran, "Form Manager/pre-population/age forty")
		assert.Contains(t, ran, "Form Manager/RetrieveClarifications/each form is valid")
		assert.Contains(t, ran, "Form Manager/archive URL")
	})
}

func TestClarificationsAreSkippedWithoutCapability(t *testing.T) {
	withSimulators(t, func(urls map[string]string) {
		results := runAgainst(t, urls["FormManager"], "form-manager")
		assert.True(t, results.OK())
		for _, r := range results.Tests {
			assert.NotEqual(t, "Form Manager/RetrieveClarifications", r.TestID.String())
		}
	})
}

func TestFormReceiverSuitePassesAgainstSimulator(t *testing.T) {
	withSimulators(t, func(urls map[string]string) {
		results := runAgainst(t, urls["FormReceiver"], "form-receiver")
		assert.True(t, results.OK(), "failures: %v", failureIDs(results.Failures))
		assert.GreaterOrEqual(t, len(results.Tests), 3)
	})
}

func TestFormArchiverSuitePassesAgainstSimulator(t *testing.T) {
	withSimulators(t, func(urls map[string]string) {
		results := runAgainst(t, urls["FormArchiver"], "form-archiver")
		assert.True(t, results.OK(), "failures: %v", failureIDs(results.Failures))
	})
}

func TestLenientFormManagerGetsNonCriticalFailures(t *testing.T) {
	service, err := simulator.NewFormManager(simulator.EndpointConfig{
		Name: "Lenient",
		Path: "/Lenient",
		Tests: simulator.TestsConfig{
			Default: &simulator.TestRef{Test: simulator.TestStaticURL, Params: simulator.Params{"url": "http://forms.example.org/any"}},
		},
	}, simulator.Dependencies{})
	require.NoError(t, err)
	httphelpers.WithServer(service, func(server *httptest.Server) {
		results := runAgainst(t, server.URL, "form-manager")
		assert.True(t, results.OK(), "failures: %v", failureIDs(results.Failures))
		ids := failureIDs(results.NonCriticalFailures)
		assert.Contains(t, ids, "Form Manager/unknown form ID")
		assert.Contains(t, ids, "Form Manager/pre-population/age 0")
		assert.NotContains(t, ids, "Form Manager/pre-population/age 42")
	})
}

func TestBrokenFormManagerFails(t *testing.T) {
	service, err := simulator.NewFormManager(simulator.EndpointConfig{
		Name:  "Broken",
		Path:  "/Broken",
		Tests: simulator.TestsConfig{Default: &simulator.TestRef{Test: simulator.TestFault}},
	}, simulator.Dependencies{})
	require.NoError(t, err)
	httphelpers.WithServer(service, func(server *httptest.Server) {
		results := runAgainst(t, server.URL, "form-manager")
		assert.False(t, results.OK())
		assert.Contains(t, failureIDs(results.Failures), "Form Manager/RetrieveForm")
	})
}

func TestSuiteRequiresAnActor(t *testing.T) {
	results := RunSuite(context.Background(), &harness.TestHarness{}, nil, nil)
	assert.False(t, results.OK())
}
