package rfdtests

import (
	"testing"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"github.com/stretchr/testify/assert"

	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/soap"
)

func TestIsAbsoluteURL(t *testing.T) {
	m.In(t).Assert("http://forms.example.org/f1?age=42", IsAbsoluteURL())
	m.In(t).Assert("https://x", IsAbsoluteURL())
	m.In(t).Assert("/relative/path", m.Not(IsAbsoluteURL()))
	m.In(t).Assert("forms.example.org", m.Not(IsAbsoluteURL()))
	m.In(t).Assert("", m.Not(IsAbsoluteURL()))
	m.In(t).Assert("urn:example:form", m.Not(IsAbsoluteURL()))
}

func TestIsWellFormedXML(t *testing.T) {
	m.In(t).Assert(`<html xmlns="http://www.w3.org/1999/xhtml"><body/></html>`, IsWellFormedXML())
	m.In(t).Assert(`<a/><b/>`, IsWellFormedXML())
	m.In(t).Assert(`<a><b></a>`, m.Not(IsWellFormedXML()))
	m.In(t).Assert(`just text`, m.Not(IsWellFormedXML()))
}

func TestFormChoiceCount(t *testing.T) {
	m.In(t).Assert(rfd.Form{URL: "http://x"}, FormChoiceCount().Should(m.Equal(1)))
	m.In(t).Assert(rfd.Form{URL: "http://x", InstanceID: "1"}, FormChoiceCount().Should(m.Equal(2)))
	m.In(t).Assert(rfd.Form{Structured: rfd.NewRawXML("<f/>")}, FormChoiceCount().Should(m.Equal(1)))
	m.In(t).Assert(rfd.Form{}, FormChoiceCount().Should(m.Equal(0)))
}

func TestExchangeTransforms(t *testing.T) {
	ex := &soap.Exchange{
		ResponseHeader: soap.Header{Action: rfd.ActionSubmitForm + "Response", RelatesTo: "urn:uuid:1"},
		ContentType:    soap.ContentTypeSOAP12 + "; charset=utf-8",
	}
	m.In(t).Assert(ex, ResponseAction().Should(m.Equal(rfd.TransactionSubmitForm.ResponseAction())))
	m.In(t).Assert(ex, ResponseRelatesTo().Should(m.Equal("urn:uuid:1")))
	m.In(t).Assert(ex, HTTPContentType().Should(m.StringHasPrefix(soap.ContentTypeSOAP12)))
	assert.NotNil(t, ex)
}
