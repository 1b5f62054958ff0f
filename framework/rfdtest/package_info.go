// Package rfdtest is a test runner that works like Go's testing package but runs as ordinary
// application code, so that conformance suites can be pointed at a live system. It adds
// capability checks, non-critical failures, debug output capture, and links each test to the
// WSLog records of the transactions it sent.
package rfdtest
