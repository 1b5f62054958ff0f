// Package internal holds helpers for rfdtest's own unit tests.
package internal

// RunAction lives outside rfdtest so that stacktrace filtering can be observed.
func RunAction(action func()) {
	action()
}
