package soap

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is the top-level SOAP 1.2 fault code. Only the two codes the RFD transactions use are
// modelled.
type Code string

const (
	CodeSender   Code = "Sender"
	CodeReceiver Code = "Receiver"
)

// StatusInternalError is the fault subcode used when a handler fails with an error that is not
// already a *Fault.
const StatusInternalError = "InternalError"

// Fault is a SOAP fault. It implements error, so handlers can return it directly; the server
// side turns it into a fault envelope with AsFault.
type Fault struct {
	Code   Code
	Status string
	Reason string
}

func SenderFault(status, format string, args ...interface{}) *Fault {
	return &Fault{Code: CodeSender, Status: status, Reason: fmt.Sprintf(format, args...)}
}

func ReceiverFault(status, format string, args ...interface{}) *Fault {
	return &Fault{Code: CodeReceiver, Status: status, Reason: fmt.Sprintf(format, args...)}
}

// AsFault returns err as a *Fault if it is one (or wraps one), and otherwise a Receiver fault
// with status InternalError carrying the error text.
func AsFault(err error) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return ReceiverFault(StatusInternalError, "%s", err.Error())
}

func (f *Fault) Error() string {
	if f.Status == "" {
		return fmt.Sprintf("SOAP fault %s: %s", f.Code, f.Reason)
	}
	return fmt.Sprintf("SOAP fault %s/%s: %s", f.Code, f.Status, f.Reason)
}

// HTTPStatus is the status code the SOAP 1.2 HTTP binding prescribes for this fault.
func (f *Fault) HTTPStatus() int {
	if f.Code == CodeSender {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (f *Fault) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	el := func(local string) xml.StartElement {
		return xml.StartElement{Name: xml.Name{Space: NamespaceSOAP12, Local: local}}
	}
	start := el("Fault")
	start.Attr = []xml.Attr{{Name: xml.Name{Local: "xmlns:env"}, Value: NamespaceSOAP12}}

	text := func(s xml.StartElement, value string) error {
		if err := e.EncodeToken(s); err != nil {
			return err
		}
		if err := e.EncodeToken(xml.CharData(value)); err != nil {
			return err
		}
		return e.EncodeToken(s.End())
	}
	open := func(s xml.StartElement) error { return e.EncodeToken(s) }
	closeEl := func(s xml.StartElement) error { return e.EncodeToken(s.End()) }

	code, subcode, reason := el("Code"), el("Subcode"), el("Reason")
	reasonText := el("Text")
	reasonText.Attr = []xml.Attr{{Name: xml.Name{Local: "xml:lang"}, Value: "en"}}

	steps := []func() error{
		func() error { return open(start) },
		func() error { return open(code) },
		func() error { return text(el("Value"), "env:"+string(f.Code)) },
	}
	if f.Status != "" {
		steps = append(steps,
			func() error { return open(subcode) },
			func() error { return text(el("Value"), f.Status) },
			func() error { return closeEl(subcode) },
		)
	}
	steps = append(steps,
		func() error { return closeEl(code) },
		func() error { return open(reason) },
		func() error { return text(reasonText, f.Reason) },
		func() error { return closeEl(reason) },
		func() error { return closeEl(start) },
	)
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

type fault12 struct {
	Code struct {
		Value   string `xml:"Value"`
		Subcode struct {
			Value string `xml:"Value"`
		} `xml:"Subcode"`
	} `xml:"Code"`
	Reason struct {
		Text []string `xml:"Text"`
	} `xml:"Reason"`
}

type fault11 struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

func decodeFault(d *xml.Decoder, start xml.StartElement, version Version) (*Fault, error) {
	if version == SOAP11 {
		var f fault11
		if err := d.DecodeElement(&f, &start); err != nil {
			return nil, fmt.Errorf("reading Fault: %w", err)
		}
		code := CodeReceiver
		local := localPart(f.FaultCode)
		if local == "Client" || local == string(CodeSender) {
			code = CodeSender
		}
		return &Fault{Code: code, Status: local, Reason: strings.TrimSpace(f.FaultString)}, nil
	}
	var f fault12
	if err := d.DecodeElement(&f, &start); err != nil {
		return nil, fmt.Errorf("reading Fault: %w", err)
	}
	ret := &Fault{
		Code:   Code(localPart(f.Code.Value)),
		Status: localPart(f.Code.Subcode.Value),
	}
	if len(f.Reason.Text) > 0 {
		ret.Reason = strings.TrimSpace(f.Reason.Text[0])
	}
	return ret, nil
}

func localPart(qname string) string {
	qname = strings.TrimSpace(qname)
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}
