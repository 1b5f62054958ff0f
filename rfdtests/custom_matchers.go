package rfdtests

import (
	"fmt"
	"net/url"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"

	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/soap"
)

// The functions in this file adapt the matchers API to the RFD wire types. For more information,
// see matchers.Transform.

func ResponseAction() m.MatcherTransform {
	return m.Transform(
		"WS-Addressing action",
		func(value interface{}) (interface{}, error) {
			return value.(*soap.Exchange).ResponseHeader.Action, nil
		}).
		EnsureInputValueType(&soap.Exchange{})
}

func ResponseRelatesTo() m.MatcherTransform {
	return m.Transform(
		"WS-Addressing RelatesTo",
		func(value interface{}) (interface{}, error) {
			return value.(*soap.Exchange).ResponseHeader.RelatesTo, nil
		}).
		EnsureInputValueType(&soap.Exchange{})
}

func HTTPContentType() m.MatcherTransform {
	return m.Transform(
		"HTTP Content-Type",
		func(value interface{}) (interface{}, error) {
			return value.(*soap.Exchange).ContentType, nil
		}).
		EnsureInputValueType(&soap.Exchange{})
}

// FormChoiceCount counts how many of the form's alternatives are set.
func FormChoiceCount() m.MatcherTransform {
	return m.Transform(
		"number of form choices",
		func(value interface{}) (interface{}, error) {
			f := value.(rfd.Form)
			n := 0
			if !f.Structured.IsEmpty() {
				n++
			}
			if f.URL != "" {
				n++
			}
			if f.InstanceID != "" {
				n++
			}
			return n, nil
		}).
		EnsureInputValueType(rfd.Form{})
}

// IsAbsoluteURL matches a string that parses as a URL with a scheme and a host.
func IsAbsoluteURL() m.Matcher {
	return m.New(
		func(value interface{}) bool {
			s, ok := value.(string)
			if !ok {
				return false
			}
			u, err := url.Parse(s)
			return err == nil && u.IsAbs() && u.Host != ""
		},
		func() string {
			return "is an absolute URL"
		},
		func(value interface{}) string {
			return fmt.Sprintf("%q is not an absolute URL", value)
		},
	)
}

// IsWellFormedXML matches a string holding one or more complete XML elements.
func IsWellFormedXML() m.Matcher {
	return m.New(
		func(value interface{}) bool {
			s, ok := value.(string)
			return ok && isWellFormedXML(s) == nil
		},
		func() string {
			return "is well-formed XML"
		},
		func(value interface{}) string {
			s, _ := value.(string)
			return fmt.Sprintf("is not well-formed XML (%v)", isWellFormedXML(s))
		},
	)
}
