// Package framework contains the low-level implementation of test harness infrastructure
// that is shared by the simulators and the client-side conformance runner. The base package
// contains shared types such as Logger and Capabilities; other components are in the
// subpackages harness, rfdtest and helpers.
//
// The general model is:
//
// 1. The harness plays the Form Filler against a system under test that exposes one or more
// RFD SOAP endpoints (Form Manager, Form Receiver, Form Archiver).
//
// 2. The harness can expose any number of mock endpoints to receive callbacks from the system
// under test, for instance at the archive URL carried in a Retrieve Form request.
//
// 3. There is a general notion of a test scope which is similar to Go's testing.T, allowing
// pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results.
package framework
