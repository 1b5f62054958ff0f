package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest"
	"github.com/rfd-conformance/rfd-test-harness/serviceinfo"
)

const defaultCallbackPort = 8111

type commandParams struct {
	serviceURL       string
	name             string
	actors           []string
	formIDs          serviceinfo.FormIDs
	capture          []string
	port             int
	host             string
	filters          rfdtest.RegexFilters
	debug            bool
	debugAll         bool
	jUnitFile        string
	skipFile         string
	recordFailures   string
	transactionsFile string
}

var runParams commandParams

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the client-side conformance suites against a Form Manager, Receiver or Archiver",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runParams.serviceURL == "" {
			return errors.New("--url is required")
		}
		if len(runParams.actors) == 0 {
			return errors.New("at least one --actor is required")
		}
		ctx, cancel := signalContext()
		defer cancel()

		results, err := runSuites(ctx, runParams)
		if err != nil {
			return err
		}
		if !results.OK() {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	fs := runCmd.Flags()
	fs.StringVar(&runParams.serviceURL, "url", "", "endpoint URL of the system under test")
	fs.StringVar(&runParams.name, "name", "", "name of the system under test in reports (default is the URL)")
	fs.StringSliceVar(&runParams.actors, "actor", nil,
		"actor played by the system under test: form-manager, form-receiver, form-processor, form-archiver, clarifications")
	fs.StringVar(&runParams.host, "callback-host", "localhost", "external hostname of the test harness")
	fs.IntVar(&runParams.port, "callback-port", defaultCallbackPort, "port that mock endpoints listen on (0 for any)")
	fs.StringSliceVar(&runParams.capture, "capture", []string{"workflowData/formID"},
		"payload paths recorded on each transaction")
	fs.Var(&runParams.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&runParams.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&runParams.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&runParams.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&runParams.jUnitFile, "junit", "", "write JUnit XML output to the specified path")
	fs.StringVar(&runParams.skipFile, "skip-file", "", "file listing tests to skip, one full test name per line")
	fs.StringVar(&runParams.recordFailures, "record-failures", "", "write the names of failed tests to this file")
	fs.StringVar(&runParams.transactionsFile, "transactions", "", "write captured transactions as JSON lines to this file")

	defaults := serviceinfo.DefaultFormIDs()
	fs.StringVar(&runParams.formIDs.Retrieve, "form-id", defaults.Retrieve, "form ID the system under test answers with any form")
	fs.StringVar(&runParams.formIDs.Prepop, "prepop-form-id", defaults.Prepop, "form ID that checks the prepopulated age")
	fs.StringVar(&runParams.formIDs.Unknown, "unknown-form-id", defaults.Unknown, "form ID the system under test must not know")
	fs.StringVar(&runParams.formIDs.Submit, "submit-form-id", defaults.Submit, "form ID used in SubmitForm content")
	fs.StringVar(&runParams.formIDs.Archive, "archive-form-id", defaults.Archive, "form ID used in ArchiveForm content")
	fs.StringVar(&runParams.formIDs.OrgID, "org-id", defaults.OrgID, "orgID used in RetrieveClarifications")

	rootCmd.AddCommand(runCmd)
}
