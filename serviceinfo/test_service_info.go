// Package serviceinfo describes a system under test for client-side conformance runs.
package serviceinfo

import (
	"fmt"

	"github.com/rfd-conformance/rfd-test-harness/framework"
	"github.com/rfd-conformance/rfd-test-harness/framework/helpers"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
)

// FormIDs are the form identifiers the suites send to the SUT. A Form Manager under test must be
// configured to know them.
type FormIDs struct {
	// Retrieve is answered with any valid form.
	Retrieve string `json:"retrieve,omitempty"`
	// Prepop is a form whose pre-population data carries an age that must be in 1..85.
	Prepop string `json:"prepop,omitempty"`
	// Unknown should not be known to the SUT.
	Unknown string `json:"unknown,omitempty"`
	Submit  string `json:"submit,omitempty"`
	Archive string `json:"archive,omitempty"`
	OrgID   string `json:"orgId,omitempty"`
}

func DefaultFormIDs() FormIDs {
	return FormIDs{
		Retrieve: "url-form",
		Prepop:   "age-form",
		Unknown:  "no-such-form",
		Submit:   "submit-form",
		Archive:  "archive-form",
		OrgID:    "test-org",
	}
}

// WithDefaults fills empty fields from DefaultFormIDs.
func (f FormIDs) WithDefaults() FormIDs {
	d := DefaultFormIDs()
	for _, p := range []struct{ field, def *string }{
		{&f.Retrieve, &d.Retrieve}, {&f.Prepop, &d.Prepop}, {&f.Unknown, &d.Unknown},
		{&f.Submit, &d.Submit}, {&f.Archive, &d.Archive}, {&f.OrgID, &d.OrgID},
	} {
		if *p.field == "" {
			*p.field = *p.def
		}
	}
	return f
}

// TestServiceInfo is what the harness knows about the SUT.
type TestServiceInfo struct {
	Name         string                 `json:"name"`
	URL          string                 `json:"url"`
	Capabilities framework.Capabilities `json:"capabilities"`
	FormIDs      FormIDs                `json:"formIds"`
}

// New builds the description of a SUT from the actor and capability names given on the command
// line. A Form Processor also gets the Form Manager and Form Receiver capabilities.
func New(name, url string, names []string, formIDs FormIDs) (TestServiceInfo, error) {
	info := TestServiceInfo{Name: name, URL: url, FormIDs: formIDs.WithDefaults()}
	add := func(c string) {
		if !info.Capabilities.Has(c) {
			info.Capabilities = append(info.Capabilities, c)
		}
	}
	for _, n := range names {
		if n == rfd.CapabilityClarifications {
			add(n)
			continue
		}
		actor, err := rfd.ParseActor(n)
		if err != nil {
			return TestServiceInfo{}, err
		}
		add(string(actor))
		if actor == rfd.ActorFormProcessor {
			add(string(rfd.ActorFormManager))
			add(string(rfd.ActorFormReceiver))
		}
	}
	if len(info.Capabilities) == 0 {
		return TestServiceInfo{}, fmt.Errorf("no actor given for %s", url)
	}
	if info.Name == "" {
		info.Name = url
	}
	return info, nil
}

// Plays reports whether the SUT acts as the given actor.
func (s TestServiceInfo) Plays(actor rfd.Actor) bool {
	return s.Capabilities.Has(string(actor))
}

// FullData is the JSON form of the description, recorded in JUnit output.
func (s TestServiceInfo) FullData() []byte {
	return helpers.AsJSON(s)
}

func Empty() TestServiceInfo {
	return TestServiceInfo{}
}
