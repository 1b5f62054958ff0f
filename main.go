package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phsym/console-slog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rfd-conformance/rfd-test-harness/framework"
	"github.com/rfd-conformance/rfd-test-harness/framework/harness"
	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest"
	"github.com/rfd-conformance/rfd-test-harness/rfdtests"
	"github.com/rfd-conformance/rfd-test-harness/serviceinfo"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

// set with -ldflags "-X main.version=..." for releases
var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:          "rfd-harness",
	Short:        "IHE Retrieve Form for Data Capture conformance test harness",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		setupLogging(verbose)
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rfd-test-harness v%s\n", version)
	},
}

func init() {
	viper.SetEnvPrefix("RFD")
	viper.AutomaticEnv()
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.AddCommand(versionCmd)
}

func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	if os.Getenv("PRETTY_LOGS") != "false" {
		slog.SetDefault(slog.New(
			console.NewHandler(os.Stderr, &console.HandlerOptions{Level: logLevel}),
		))
	} else {
		slog.SetLogLoggerLevel(logLevel)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSuites(ctx context.Context, params commandParams) (*rfdtest.Results, error) {
	if params.skipFile != "" {
		if err := loadSuppressions(&params); err != nil {
			return nil, err
		}
	}

	sut, err := serviceinfo.New(params.name, params.serviceURL, params.actors, params.formIDs)
	if err != nil {
		return nil, err
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = framework.SlogLogger(slog.Default(), slog.LevelInfo)
	}

	var submitter wslog.Submitter
	if params.transactionsFile != "" {
		sink, closeSink, err := newJSONLinesSink(params.transactionsFile)
		if err != nil {
			return nil, err
		}
		executor := wslog.NewExecutor(wslog.ExecutorConfig{Workers: 1}, sink)
		defer closeSink()
		defer executor.Close()
		submitter = executor
	}

	h, err := harness.NewTestHarness(ctx, harness.Config{
		SUT:           sut,
		CallbackHost:  params.host,
		CallbackPort:  params.port,
		Capture:       params.capture,
		Submitter:     submitter,
		Logger:        slog.Default(),
		DebugLogger:   mainDebugLogger,
		StartupOutput: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Close() }()

	fmt.Printf("Testing %s as %s\n\n", sut.URL, strings.Join(sut.Capabilities, ", "))
	rfdtest.PrintFilterDescription(os.Stdout, params.filters, rfdtests.AllCapabilities(), sut.Capabilities)

	var testLogger rfdtest.TestLogger
	consoleLogger := rfdtest.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	if params.jUnitFile == "" {
		testLogger = consoleLogger
	} else {
		testLogger = &rfdtest.MultiTestLogger{Loggers: []rfdtest.TestLogger{
			consoleLogger,
			rfdtest.NewJUnitTestLogger(params.jUnitFile, sut, params.filters),
		}}
	}

	results := rfdtests.RunSuite(ctx, h, params.filters, testLogger)

	fmt.Println()
	if logErr := testLogger.EndLog(results); logErr != nil {
		return nil, fmt.Errorf("error writing log: %w", logErr)
	}

	if params.recordFailures != "" {
		f, err := os.Create(params.recordFailures)
		if err != nil {
			return nil, fmt.Errorf("cannot create suppression file: %w", err)
		}
		for _, test := range results.Failures {
			fmt.Fprintln(f, test.TestID)
		}
		_ = f.Close()
	}

	return &results, nil
}

func loadSuppressions(params *commandParams) error {
	file, err := os.Open(params.skipFile)
	if err != nil {
		return fmt.Errorf("cannot open provided suppression file: %w", err)
	}
	defer func() { _ = file.Close() }()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// blank lines and comments
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		escaped := regexp.QuoteMeta(line)
		if err := params.filters.MustNotMatch.Set(escaped); err != nil {
			return fmt.Errorf("cannot parse suppression: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("while processing suppression file: %w", err)
	}
	return nil
}

// newJSONLinesSink writes each record as one line of JSON.
func newJSONLinesSink(path string) (wslog.Sink, func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create transactions file: %w", err)
	}
	var lock sync.Mutex
	enc := json.NewEncoder(f)
	sink := wslog.SinkFunc(func(_ context.Context, rec wslog.Record) error {
		lock.Lock()
		defer lock.Unlock()
		return enc.Encode(rec)
	})
	return sink, func() { _ = f.Close() }, nil
}
