package wslog

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rfd-conformance/rfd-test-harness/soap"
)

type extractFrame struct {
	name     string
	text     strings.Builder
	hasChild bool
}

// ExtractValues returns one NameValue per non-empty leaf element of an XML document. The name
// is the slash-joined path of local names below the SOAP Body (or below the root element if the
// document is not an envelope), and the SOAP Header is ignored. If filter is non-empty, only
// paths ending with one of its entries (on a segment boundary) are returned. On malformed input
// the values found so far are returned along with the error.
func ExtractValues(data []byte, filter []string) ([]NameValue, error) {
	var ret []NameValue
	d := xml.NewDecoder(bytes.NewReader(data))
	var stack []*extractFrame
	envelope := false

	for {
		tok, err := d.Token()
		if err == io.EOF {
			return ret, nil
		}
		if err != nil {
			return ret, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				envelope = t.Name.Local == "Envelope" &&
					(t.Name.Space == soap.NamespaceSOAP12 || t.Name.Space == soap.NamespaceSOAP11)
			} else {
				stack[len(stack)-1].hasChild = true
			}
			stack = append(stack, &extractFrame{name: t.Name.Local})
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if !top.hasChild {
				if path, ok := payloadPath(stack, envelope); ok {
					value := strings.TrimSpace(top.text.String())
					if value != "" && matchesFilter(path, filter) {
						ret = append(ret, NameValue{Name: path, Value: value})
					}
				}
			}
			stack = stack[:len(stack)-1]
		}
	}
}

func payloadPath(stack []*extractFrame, envelope bool) (string, bool) {
	var names []string
	if envelope {
		if len(stack) < 3 || stack[1].name != "Body" {
			return "", false
		}
		for _, f := range stack[2:] {
			names = append(names, f.name)
		}
	} else {
		if len(stack) < 2 {
			return "", false
		}
		for _, f := range stack[1:] {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "/"), true
}

func matchesFilter(path string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		f = strings.Trim(f, "/")
		if path == f || strings.HasSuffix(path, "/"+f) {
			return true
		}
	}
	return false
}

// FirstValue returns the value of the first leaf whose path ends with the given suffix.
func FirstValue(data []byte, suffix string) (string, bool) {
	values, _ := ExtractValues(data, []string{suffix})
	if len(values) == 0 {
		return "", false
	}
	return values[0].Value, true
}
