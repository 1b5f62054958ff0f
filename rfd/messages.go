package rfd

import (
	"encoding/xml"
	"errors"
	"strings"
)

// RawXML carries an arbitrary XML fragment, such as pre-population data or a submitted form,
// without interpreting it.
type RawXML struct {
	Inner string `xml:",innerxml"`
}

func NewRawXML(s string) *RawXML { return &RawXML{Inner: s} }

func (r *RawXML) String() string {
	if r == nil {
		return ""
	}
	return r.Inner
}

func (r *RawXML) IsEmpty() bool {
	return r == nil || strings.TrimSpace(r.Inner) == ""
}

type WorkflowData struct {
	FormID          string `xml:"urn:ihe:iti:rfd:2007 formID"`
	EncodedResponse bool   `xml:"urn:ihe:iti:rfd:2007 encodedResponse"`
	ArchiveURL      string `xml:"urn:ihe:iti:rfd:2007 archiveURL"`
	Context         string `xml:"urn:ihe:iti:rfd:2007 context"`
	InstanceID      string `xml:"urn:ihe:iti:rfd:2007 instanceID"`
}

type RetrieveFormRequest struct {
	XMLName      xml.Name     `xml:"urn:ihe:iti:rfd:2007 RetrieveFormRequest"`
	PrepopData   *RawXML      `xml:"urn:ihe:iti:rfd:2007 prepopData"`
	WorkflowData WorkflowData `xml:"urn:ihe:iti:rfd:2007 workflowData"`
}

// Form is the form choice of a RetrieveForm or RetrieveClarifications response. Exactly one of
// the three fields must be set.
type Form struct {
	Structured *RawXML `xml:"urn:ihe:iti:rfd:2007 Structured,omitempty"`
	URL        string  `xml:"urn:ihe:iti:rfd:2007 URL,omitempty"`
	InstanceID string  `xml:"urn:ihe:iti:rfd:2007 instanceID,omitempty"`
}

var (
	errNoFormChoice       = errors.New("form has none of Structured, URL or instanceID")
	errMultipleFormChoice = errors.New("form has more than one of Structured, URL or instanceID")
)

func (f Form) Validate() error {
	n := 0
	if !f.Structured.IsEmpty() {
		n++
	}
	if strings.TrimSpace(f.URL) != "" {
		n++
	}
	if strings.TrimSpace(f.InstanceID) != "" {
		n++
	}
	switch n {
	case 0:
		return errNoFormChoice
	case 1:
		return nil
	default:
		return errMultipleFormChoice
	}
}

type RetrieveFormResponse struct {
	XMLName      xml.Name `xml:"urn:ihe:iti:rfd:2007 RetrieveFormResponse"`
	Form         Form     `xml:"urn:ihe:iti:rfd:2007 form"`
	ContentType  string   `xml:"urn:ihe:iti:rfd:2007 contentType"`
	ResponseCode string   `xml:"urn:ihe:iti:rfd:2007 responseCode,omitempty"`
}

type SubmitFormRequest struct {
	XMLName xml.Name `xml:"urn:ihe:iti:rfd:2007 SubmitFormRequest"`
	Content string   `xml:",innerxml"`
}

type SubmitFormResponse struct {
	XMLName      xml.Name `xml:"urn:ihe:iti:rfd:2007 SubmitFormResponse"`
	ResponseCode string   `xml:"urn:ihe:iti:rfd:2007 responseCode"`
}

type ArchiveFormRequest struct {
	XMLName xml.Name `xml:"urn:ihe:iti:rfd:2007 ArchiveFormRequest"`
	Content string   `xml:",innerxml"`
}

type ArchiveFormResponse struct {
	XMLName      xml.Name `xml:"urn:ihe:iti:rfd:2007 ArchiveFormResponse"`
	ResponseCode string   `xml:"urn:ihe:iti:rfd:2007 responseCode"`
}

type RetrieveClarificationsRequest struct {
	XMLName xml.Name `xml:"urn:ihe:iti:rfd:2007 RetrieveClarificationsRequest"`
	OrgID   string   `xml:"urn:ihe:iti:rfd:2007 orgID"`
}

type RetrieveClarificationsResponse struct {
	XMLName xml.Name `xml:"urn:ihe:iti:rfd:2007 RetrieveClarificationsResponse"`
	Forms   []Form   `xml:"urn:ihe:iti:rfd:2007 form"`
}

// ResponseCodeOK is the responseCode returned for accepted submissions and archive requests.
const ResponseCodeOK = "OK"
