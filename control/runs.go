package control

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/rfd-conformance/rfd-test-harness/framework"
	"github.com/rfd-conformance/rfd-test-harness/framework/harness"
	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest"
	"github.com/rfd-conformance/rfd-test-harness/rfdtests"
	"github.com/rfd-conformance/rfd-test-harness/serviceinfo"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

type RunState string

const (
	RunRunning RunState = "running"
	RunPassed  RunState = "passed"
	RunFailed  RunState = "failed"
	RunError   RunState = "error"
)

var ErrRunnerClosed = errors.New("runner is closed")

// RunRequest is the body of POST /runs.
type RunRequest struct {
	URL     string              `json:"url"`
	Name    string              `json:"name,omitempty"`
	Actors  []string            `json:"actors"`
	FormIDs serviceinfo.FormIDs `json:"formIds"`
	Run     []string            `json:"run,omitempty"`
	Skip    []string            `json:"skip,omitempty"`
}

type RunFailure struct {
	Test         string   `json:"test"`
	Errors       []string `json:"errors"`
	Transactions []string `json:"transactions,omitempty"`
}

// Run is the status of one client-side run as reported by GET /runs/{id}.
type Run struct {
	ID          string                      `json:"id"`
	SUT         serviceinfo.TestServiceInfo `json:"sut"`
	State       RunState                    `json:"state"`
	Started     time.Time                   `json:"started"`
	Finished    *time.Time                  `json:"finished,omitempty"`
	Completed   int                         `json:"completed"`
	Summary     string                      `json:"summary,omitempty"`
	Failures    []RunFailure                `json:"failures,omitempty"`
	NonCritical []RunFailure                `json:"nonCritical,omitempty"`
	Error       string                      `json:"error,omitempty"`
}

type RunnerConfig struct {
	// CallbackHost is the hostname systems under test use to reach mock endpoints.
	CallbackHost string
	Capture      []string
	Submitter    wslog.Submitter
	StartupWait  time.Duration
	Logger       *slog.Logger
}

// Runner executes client-side conformance runs in the background. Each run gets its own
// harness, so runs against different systems may overlap.
type Runner struct {
	config RunnerConfig
	runs   map[string]*Run
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	lock   sync.RWMutex
}

func NewRunner(config RunnerConfig) *Runner {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		config: config,
		runs:   make(map[string]*Run),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start validates the request and launches the run. Validation errors are returned before any
// run is recorded.
func (r *Runner) Start(req RunRequest) (Run, error) {
	if req.URL == "" {
		return Run{}, errors.New("url is required")
	}
	sut, err := serviceinfo.New(req.Name, req.URL, req.Actors, req.FormIDs)
	if err != nil {
		return Run{}, err
	}
	filters, err := rfdtest.NewRegexFilters(req.Run, req.Skip)
	if err != nil {
		return Run{}, err
	}

	run := &Run{
		ID:      ksuid.New().String(),
		SUT:     sut,
		State:   RunRunning,
		Started: time.Now(),
	}
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return Run{}, ErrRunnerClosed
	}
	r.runs[run.ID] = run
	r.wg.Add(1)
	snapshot := *run
	r.lock.Unlock()

	r.config.Logger.Info("Starting conformance run", "run", run.ID, "url", sut.URL,
		"capabilities", sut.Capabilities)
	go r.execute(run.ID, sut, filters)
	return snapshot, nil
}

func (r *Runner) execute(id string, sut serviceinfo.TestServiceInfo, filters rfdtest.Filter) {
	defer r.wg.Done()
	logger := r.config.Logger.With("run", id)

	h, err := harness.NewTestHarness(r.ctx, harness.Config{
		SUT:          sut,
		CallbackHost: r.config.CallbackHost,
		Capture:      r.config.Capture,
		Submitter:    r.config.Submitter,
		StartupWait:  r.config.StartupWait,
		Logger:       logger,
		DebugLogger:  framework.SlogLogger(logger, slog.LevelDebug),
	})
	if err != nil {
		logger.Error("Conformance run could not start", "error", err)
		r.update(id, func(run *Run) {
			run.State = RunError
			run.Error = err.Error()
		})
		return
	}
	defer func() { _ = h.Close() }()

	results := rfdtests.RunSuite(r.ctx, h, filters, progressLogger{runner: r, id: id})
	logger.Info("Conformance run finished", "summary", results.Summary())
	r.update(id, func(run *Run) {
		run.State = RunPassed
		if !results.OK() {
			run.State = RunFailed
		}
		run.Summary = results.Summary()
		run.Failures = describeFailures(results.Failures)
		run.NonCritical = describeFailures(results.NonCriticalFailures)
	})
}

func (r *Runner) update(id string, fn func(run *Run)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return
	}
	fn(run)
	if run.State != RunRunning && run.Finished == nil {
		now := time.Now()
		run.Finished = &now
	}
}

func describeFailures(results []rfdtest.TestResult) []RunFailure {
	var ret []RunFailure
	for _, result := range results {
		f := RunFailure{Test: result.TestID.String(), Transactions: result.Transactions}
		for _, err := range result.Errors {
			f.Errors = append(f.Errors, err.Error())
		}
		ret = append(ret, f)
	}
	return ret
}

// Get returns a copy of the run's current status.
func (r *Runner) Get(id string) (Run, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// List returns every run, most recently started first.
func (r *Runner) List() []Run {
	r.lock.RLock()
	ret := make([]Run, 0, len(r.runs))
	for _, run := range r.runs {
		ret = append(ret, *run)
	}
	r.lock.RUnlock()
	sort.Slice(ret, func(i, j int) bool {
		if !ret[i].Started.Equal(ret[j].Started) {
			return ret[i].Started.After(ret[j].Started)
		}
		return ret[i].ID > ret[j].ID
	})
	return ret
}

// Close cancels runs in progress and waits for them to stop.
func (r *Runner) Close() {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return
	}
	r.closed = true
	r.lock.Unlock()
	r.cancel()
	r.wg.Wait()
}

// progressLogger counts finished tests so that GET /runs/{id} shows progress.
type progressLogger struct {
	runner *Runner
	id     string
}

func (p progressLogger) TestStarted(rfdtest.TestID)         {}
func (p progressLogger) TestError(rfdtest.TestID, error)    {}
func (p progressLogger) TestSkipped(rfdtest.TestID, string) {}
func (p progressLogger) EndLog(rfdtest.Results) error       { return nil }

func (p progressLogger) TestFinished(id rfdtest.TestID, result rfdtest.TestResult, _ framework.CapturedOutput) {
	p.runner.update(p.id, func(run *Run) { run.Completed++ })
	if len(result.Errors) > 0 {
		p.runner.config.Logger.Debug("Test failed", "run", p.id, "test", id.String(),
			"nonCritical", result.NonCritical)
	}
}
