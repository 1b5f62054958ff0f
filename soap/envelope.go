// Package soap implements the small part of SOAP 1.2 and WS-Addressing that the RFD
// transactions need: envelope encoding and decoding, faults, and a client call helper.
//
// SOAP 1.1 envelopes are accepted on input so that older Form Fillers can be tested, but
// everything the harness produces is SOAP 1.2.
package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/google/uuid"
)

const (
	NamespaceSOAP12     = "http://www.w3.org/2003/05/soap-envelope"
	NamespaceSOAP11     = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceAddressing = "http://www.w3.org/2005/08/addressing"

	ContentTypeSOAP12 = "application/soap+xml"
	ContentTypeSOAP11 = "text/xml"

	// ActionFault is the WS-Addressing action used for every fault response.
	ActionFault = "http://www.w3.org/2005/08/addressing/soap/fault"

	// AnonymousAddress is the WS-Addressing address meaning "reply on the same connection".
	AnonymousAddress = "http://www.w3.org/2005/08/addressing/anonymous"
)

// Version identifies the SOAP envelope namespace of a message.
type Version int

const (
	SOAP12 Version = iota
	SOAP11
)

func (v Version) String() string {
	if v == SOAP11 {
		return "SOAP 1.1"
	}
	return "SOAP 1.2"
}

// Header holds the WS-Addressing properties of a message.
type Header struct {
	Action    string
	MessageID string
	To        string
	RelatesTo string
	ReplyTo   string
}

// NewMessageID returns a fresh WS-Addressing message ID in urn:uuid form.
func NewMessageID() string {
	return "urn:uuid:" + uuid.NewString()
}

// RequestHeader builds the addressing header for a new outgoing request.
func RequestHeader(to, action string) Header {
	return Header{
		Action:    action,
		MessageID: NewMessageID(),
		To:        to,
		ReplyTo:   AnonymousAddress,
	}
}

// ReplyHeader builds the addressing header for a response to the given request.
func ReplyHeader(request Header, action string) Header {
	return Header{
		Action:    action,
		MessageID: NewMessageID(),
		To:        AnonymousAddress,
		RelatesTo: request.MessageID,
	}
}

// Message is a decoded envelope. Payload holds the raw bytes of the first child of the Body,
// which is convenient for logging; use DecodePayload to unmarshal it, since namespace
// declarations made on the envelope are not part of the raw slice.
type Message struct {
	Version     Version
	Header      Header
	PayloadName xml.Name
	Payload     []byte
	Fault       *Fault
	raw         []byte
}

var errNoEnvelope = errors.New("document is not a SOAP envelope")

// Decode parses a SOAP 1.1 or 1.2 envelope. If the body contains a fault, Message.Fault is set
// and PayloadName names the Fault element.
func Decode(data []byte) (*Message, error) {
	m := &Message{raw: data}
	d := xml.NewDecoder(bytes.NewReader(data))

	start, err := nextStart(d)
	if err != nil {
		return nil, fmt.Errorf("reading envelope: %w", err)
	}
	if start.Name.Local != "Envelope" {
		return nil, errNoEnvelope
	}
	switch start.Name.Space {
	case NamespaceSOAP12:
		m.Version = SOAP12
	case NamespaceSOAP11:
		m.Version = SOAP11
	default:
		return nil, fmt.Errorf("unsupported envelope namespace %q", start.Name.Space)
	}

	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, errors.New("envelope has no Body")
		}
		if err != nil {
			return nil, fmt.Errorf("reading envelope: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "Header":
			if err := decodeHeader(d, &m.Header); err != nil {
				return nil, err
			}
		case "Body":
			return m, decodeBody(d, m)
		default:
			if err := d.Skip(); err != nil {
				return nil, err
			}
		}
	}
}

// DecodePayload unmarshals the first Body child into v.
func (m *Message) DecodePayload(v interface{}) error {
	if m.PayloadName.Local == "" {
		return errors.New("message has an empty Body")
	}
	d := xml.NewDecoder(bytes.NewReader(m.raw))
	inBody := false
	for {
		tok, err := d.Token()
		if err != nil {
			return fmt.Errorf("decoding %s: %w", m.PayloadName.Local, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !inBody {
			if se.Name.Local == "Body" && (se.Name.Space == NamespaceSOAP12 || se.Name.Space == NamespaceSOAP11) {
				inBody = true
			}
			continue
		}
		if err := d.DecodeElement(v, &se); err != nil {
			return fmt.Errorf("decoding %s: %w", m.PayloadName.Local, err)
		}
		return nil
	}
}

func nextStart(d *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func decodeHeader(d *xml.Decoder, h *Header) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return fmt.Errorf("reading Header: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != NamespaceAddressing {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			var target *string
			switch t.Name.Local {
			case "Action":
				target = &h.Action
			case "MessageID":
				target = &h.MessageID
			case "To":
				target = &h.To
			case "RelatesTo":
				target = &h.RelatesTo
			case "ReplyTo":
				var epr struct {
					Address string `xml:"Address"`
				}
				if err := d.DecodeElement(&epr, &t); err != nil {
					return fmt.Errorf("reading ReplyTo: %w", err)
				}
				h.ReplyTo = strings.TrimSpace(epr.Address)
				continue
			default:
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			var s string
			if err := d.DecodeElement(&s, &t); err != nil {
				return fmt.Errorf("reading %s: %w", t.Name.Local, err)
			}
			*target = strings.TrimSpace(s)
		case xml.EndElement:
			return nil
		}
	}
}

func decodeBody(d *xml.Decoder, m *Message) error {
	for {
		offset := d.InputOffset()
		tok, err := d.Token()
		if err != nil {
			return fmt.Errorf("reading Body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			m.PayloadName = t.Name
			if t.Name.Local == "Fault" && (t.Name.Space == NamespaceSOAP12 || t.Name.Space == NamespaceSOAP11) {
				f, err := decodeFault(d, t, m.Version)
				if err != nil {
					return err
				}
				m.Fault = f
				m.Payload = m.raw[offset:d.InputOffset()]
				return nil
			}
			if err := d.Skip(); err != nil {
				return fmt.Errorf("reading %s: %w", t.Name.Local, err)
			}
			m.Payload = m.raw[offset:d.InputOffset()]
			return nil
		case xml.EndElement:
			return nil
		}
	}
}

type envelope struct {
	XMLName xml.Name        `xml:"http://www.w3.org/2003/05/soap-envelope Envelope"`
	Header  *envelopeHeader `xml:"http://www.w3.org/2003/05/soap-envelope Header,omitempty"`
	Body    envelopeBody    `xml:"http://www.w3.org/2003/05/soap-envelope Body"`
}

type envelopeHeader struct {
	Action    string             `xml:"http://www.w3.org/2005/08/addressing Action,omitempty"`
	MessageID string             `xml:"http://www.w3.org/2005/08/addressing MessageID,omitempty"`
	To        string             `xml:"http://www.w3.org/2005/08/addressing To,omitempty"`
	RelatesTo string             `xml:"http://www.w3.org/2005/08/addressing RelatesTo,omitempty"`
	ReplyTo   *endpointReference `xml:"http://www.w3.org/2005/08/addressing ReplyTo,omitempty"`
}

type endpointReference struct {
	Address string `xml:"http://www.w3.org/2005/08/addressing Address"`
}

type envelopeBody struct {
	Content interface{}
}

func (b envelopeBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if b.Content != nil {
		if err := e.Encode(b.Content); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// Encode produces a SOAP 1.2 envelope with the given addressing header and payload. The
// payload must marshal to a single element (a struct with an XMLName, or a *Fault).
func Encode(h Header, payload interface{}) ([]byte, error) {
	env := envelope{Body: envelopeBody{Content: payload}}
	if h != (Header{}) {
		eh := &envelopeHeader{
			Action:    h.Action,
			MessageID: h.MessageID,
			To:        h.To,
			RelatesTo: h.RelatesTo,
		}
		if h.ReplyTo != "" {
			eh.ReplyTo = &endpointReference{Address: h.ReplyTo}
		}
		env.Header = eh
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(env); err != nil {
		return nil, fmt.Errorf("encoding SOAP envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType returns the SOAP 1.2 content type carrying the action parameter.
func ContentType(action string) string {
	if action == "" {
		return ContentTypeSOAP12 + "; charset=utf-8"
	}
	return mime.FormatMediaType(ContentTypeSOAP12, map[string]string{"charset": "utf-8", "action": action})
}

// ParseContentType returns the SOAP version implied by an HTTP Content-Type header, and the
// action parameter if present. For SOAP 1.1 the action travels in the SOAPAction header,
// which the caller passes as soapAction.
func ParseContentType(contentType, soapAction string) (Version, string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return SOAP12, "", fmt.Errorf("invalid content type %q: %w", contentType, err)
	}
	switch mediaType {
	case ContentTypeSOAP12:
		return SOAP12, params["action"], nil
	case ContentTypeSOAP11:
		return SOAP11, strings.Trim(soapAction, `"`), nil
	default:
		return SOAP12, "", fmt.Errorf("content type %q is not a SOAP media type", mediaType)
	}
}
