// Package rfdtests contains the client-side conformance suites that exercise a Form Manager,
// Form Receiver, Form Archiver or Form Processor under test.
//
// Tests in this package use other packages as follows:
//
// data: scenario files for pre-population, submissions and archive requests
//
// rfdtest: the basic test scope framework
//
// harness: the SOAP client and mock endpoints
//
// rfd and soap: the wire types
package rfdtests
