package rfdtests

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/stretchr/testify/require"

	"github.com/rfd-conformance/rfd-test-harness/framework/harness"
	"github.com/rfd-conformance/rfd-test-harness/framework/rfdtest"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/serviceinfo"
	"github.com/rfd-conformance/rfd-test-harness/soap"
)

func requireContext(t *rfdtest.T) RFDTestContext {
	c, ok := t.Context().(RFDTestContext)
	if !ok {
		require.Fail(t, "test framework error: RFDTestContext not found")
	}
	return c
}

func requireHarness(t *rfdtest.T) *harness.TestHarness {
	return requireContext(t).harness
}

func formIDs(t *rfdtest.T) serviceinfo.FormIDs {
	return requireHarness(t).SUT().FormIDs
}

// call sends a request for the given transaction and decodes the response into response.
func call(t *rfdtest.T, txn rfd.Transaction, request, response interface{}) (*soap.Exchange, error) {
	t.Helper()
	return requireHarness(t).Call(t, txn.Action(), request, response)
}

// requireCall is call for requests that must succeed.
func requireCall(t *rfdtest.T, txn rfd.Transaction, request, response interface{}) *soap.Exchange {
	t.Helper()
	ex, err := call(t, txn, request, response)
	require.NoError(t, err, "%s failed", txn)
	return ex
}

// requireFault checks that err is a SOAP fault with the given code.
func requireFault(t *rfdtest.T, err error, code soap.Code) *soap.Fault {
	t.Helper()
	require.Error(t, err, "expected a SOAP fault but the request succeeded")
	var f *soap.Fault
	require.True(t, errors.As(err, &f), "expected a SOAP fault, got: %s", err)
	require.Equal(t, code, f.Code, "fault code")
	return f
}

// isWellFormedXML reports whether s parses as a sequence of XML tokens. A fragment with several
// top-level elements counts as well formed.
func isWellFormedXML(s string) error {
	d := xml.NewDecoder(strings.NewReader(s))
	elements := 0
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			if elements == 0 {
				return errors.New("no XML element found")
			}
			return nil
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			elements++
		}
	}
}
