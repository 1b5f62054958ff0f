package simulator

import (
	_ "embed"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/soap"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

// Names of the built-in tests.
const (
	TestStaticURL      = "static-url"
	TestStructuredForm = "structured-form"
	TestPrepopAge      = "prepop-age"
	TestFault          = "fault"
	TestAcceptSubmit   = "accept-submit"
	TestArchive        = "archive"
	TestClarifications = "clarifications"
)

const (
	contentTypeHTML  = "text/html"
	contentTypeXHTML = "application/xhtml+xml"

	minPrepopAge = 1
	maxPrepopAge = 85
)

//go:embed forms/sample-form.xhtml
var sampleForm string

var validate = validator.New()

func init() {
	Register(TestStaticURL, newStaticURLTest)
	Register(TestStructuredForm, newStructuredFormTest)
	Register(TestPrepopAge, newPrepopAgeTest)
	Register(TestFault, newFaultTest)
	Register(TestAcceptSubmit, newAcceptSubmitTest)
	Register(TestArchive, newArchiveTest)
	Register(TestClarifications, newClarificationsTest)
}

// formURL checks that a configured URL is absolute and names a host, recording a
// BadConfiguration fault if not.
func formURL(b Base, c *Context, raw string) (string, error) {
	valid := validate.Var(raw, "required,url") == nil
	if valid {
		u, err := url.Parse(raw)
		valid = err == nil && u.Host != ""
	}
	if !valid {
		return "", b.ReceiverFault(c, rfd.StatusBadConfiguration, "test %q has no valid form URL (got %q)", b.Name(), raw)
	}
	return raw, nil
}

type staticURLTest struct {
	Base
	url         string
	contentType string
}

func newStaticURLTest(name string, params Params) (Test, error) {
	return &staticURLTest{
		Base:        NewBase(name),
		url:         params.String("url", ""),
		contentType: params.String("contentType", contentTypeHTML),
	}, nil
}

func (t *staticURLTest) RetrieveForm(c *Context, req *rfd.RetrieveFormRequest) (*rfd.RetrieveFormResponse, error) {
	u, err := formURL(t.Base, c, t.url)
	if err != nil {
		return nil, err
	}
	c.AddValue("form/url", u)
	return &rfd.RetrieveFormResponse{
		Form:        rfd.Form{URL: u},
		ContentType: t.contentType,
	}, nil
}

type structuredFormTest struct {
	Base
	form string
}

func newStructuredFormTest(name string, params Params) (Test, error) {
	return &structuredFormTest{
		Base: NewBase(name),
		form: params.String("form", sampleForm),
	}, nil
}

func (t *structuredFormTest) RetrieveForm(c *Context, req *rfd.RetrieveFormRequest) (*rfd.RetrieveFormResponse, error) {
	return &rfd.RetrieveFormResponse{
		Form:        rfd.Form{Structured: rfd.NewRawXML(t.form)},
		ContentType: contentTypeXHTML,
	}, nil
}

func (t *structuredFormTest) RetrieveClarifications(c *Context, req *rfd.RetrieveClarificationsRequest) (
	*rfd.RetrieveClarificationsResponse, error) {
	return &rfd.RetrieveClarificationsResponse{
		Forms: []rfd.Form{{Structured: rfd.NewRawXML(t.form)}},
	}, nil
}

type prepopAgeTest struct {
	Base
	url string
}

func newPrepopAgeTest(name string, params Params) (Test, error) {
	return &prepopAgeTest{Base: NewBase(name), url: params.String("url", "")}, nil
}

func (t *prepopAgeTest) RetrieveForm(c *Context, req *rfd.RetrieveFormRequest) (*rfd.RetrieveFormResponse, error) {
	base, err := formURL(t.Base, c, t.url)
	if err != nil {
		return nil, err
	}
	if req.PrepopData.IsEmpty() {
		return nil, t.SenderFault(c, rfd.StatusInvalidPrepopData, "prepopData is required")
	}
	raw, ok := wslog.FirstValue([]byte("<prepopData>"+req.PrepopData.String()+"</prepopData>"), "age")
	if !ok {
		return nil, t.SenderFault(c, rfd.StatusInvalidPrepopData, "prepopData has no age element")
	}
	c.AddValue("prepop/age", raw)
	// Atoi rather than cast, which would read a leading zero as octal.
	age, err := strconv.Atoi(raw)
	if err != nil {
		return nil, t.SenderFault(c, rfd.StatusInvalidPrepopData, "age %q is not an integer", raw)
	}
	if age < minPrepopAge || age > maxPrepopAge {
		return nil, t.SenderFault(c, rfd.StatusInvalidPrepopData, "age %d is outside %d..%d",
			age, minPrepopAge, maxPrepopAge)
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, t.ReceiverFault(c, rfd.StatusBadConfiguration, "%s", err)
	}
	q := u.Query()
	q.Set("age", strconv.Itoa(age))
	u.RawQuery = q.Encode()
	c.AddValue("form/url", u.String())
	return &rfd.RetrieveFormResponse{
		Form:        rfd.Form{URL: u.String()},
		ContentType: contentTypeHTML,
	}, nil
}

// faultTest answers every operation with the configured fault.
type faultTest struct {
	Base
	code   soap.Code
	status string
	reason string
}

func newFaultTest(name string, params Params) (Test, error) {
	code := soap.CodeReceiver
	if strings.EqualFold(params.String("code", ""), string(soap.CodeSender)) {
		code = soap.CodeSender
	}
	return &faultTest{
		Base:   NewBase(name),
		code:   code,
		status: params.String("status", soap.StatusInternalError),
		reason: params.String("reason", "configured fault"),
	}, nil
}

func (t *faultTest) fault(c *Context) error {
	if t.code == soap.CodeSender {
		return t.SenderFault(c, t.status, "%s", t.reason)
	}
	return t.ReceiverFault(c, t.status, "%s", t.reason)
}

func (t *faultTest) RetrieveForm(c *Context, _ *rfd.RetrieveFormRequest) (*rfd.RetrieveFormResponse, error) {
	return nil, t.fault(c)
}

func (t *faultTest) SubmitForm(c *Context, _ *rfd.SubmitFormRequest) (*rfd.SubmitFormResponse, error) {
	return nil, t.fault(c)
}

func (t *faultTest) ArchiveForm(c *Context, _ *rfd.ArchiveFormRequest) (*rfd.ArchiveFormResponse, error) {
	return nil, t.fault(c)
}

func (t *faultTest) RetrieveClarifications(c *Context, _ *rfd.RetrieveClarificationsRequest) (
	*rfd.RetrieveClarificationsResponse, error) {
	return nil, t.fault(c)
}

type acceptSubmitTest struct {
	Base
	responseCode string
}

func newAcceptSubmitTest(name string, params Params) (Test, error) {
	return &acceptSubmitTest{
		Base:         NewBase(name),
		responseCode: params.String("responseCode", rfd.ResponseCodeOK),
	}, nil
}

func (t *acceptSubmitTest) SubmitForm(c *Context, req *rfd.SubmitFormRequest) (*rfd.SubmitFormResponse, error) {
	values, err := wslog.ExtractValues([]byte("<content>"+req.Content+"</content>"), nil)
	if err != nil {
		c.Logger.Debug("Submitted content is not well-formed", "error", err)
	}
	for _, v := range values {
		c.AddValue("submit/"+v.Name, v.Value)
	}
	return &rfd.SubmitFormResponse{ResponseCode: t.responseCode}, nil
}

type archiveTest struct {
	Base
	contentType string
}

func newArchiveTest(name string, params Params) (Test, error) {
	return &archiveTest{
		Base:        NewBase(name),
		contentType: params.String("contentType", "application/xml"),
	}, nil
}

func (t *archiveTest) store(c *Context, content string) error {
	if c.Archive == nil {
		return t.ReceiverFault(c, rfd.StatusArchiveFailed, "no archive store is configured")
	}
	key, err := c.Archive.Put(c.Context(), []byte(content), t.contentType)
	if err != nil {
		c.Logger.Warn("Archive failed", "error", err)
		return t.ReceiverFault(c, rfd.StatusArchiveFailed, "could not archive form: %s", err)
	}
	c.AddValue("archive/key", key)
	return nil
}

func (t *archiveTest) ArchiveForm(c *Context, req *rfd.ArchiveFormRequest) (*rfd.ArchiveFormResponse, error) {
	if err := t.store(c, req.Content); err != nil {
		return nil, err
	}
	return &rfd.ArchiveFormResponse{ResponseCode: rfd.ResponseCodeOK}, nil
}

func (t *archiveTest) SubmitForm(c *Context, req *rfd.SubmitFormRequest) (*rfd.SubmitFormResponse, error) {
	if err := t.store(c, req.Content); err != nil {
		return nil, err
	}
	return &rfd.SubmitFormResponse{ResponseCode: rfd.ResponseCodeOK}, nil
}

type clarificationsTest struct {
	Base
	urls []string
}

func newClarificationsTest(name string, params Params) (Test, error) {
	return &clarificationsTest{Base: NewBase(name), urls: params.Strings("urls")}, nil
}

func (t *clarificationsTest) RetrieveClarifications(c *Context, req *rfd.RetrieveClarificationsRequest) (
	*rfd.RetrieveClarificationsResponse, error) {
	resp := &rfd.RetrieveClarificationsResponse{}
	for _, raw := range t.urls {
		u, err := formURL(t.Base, c, raw)
		if err != nil {
			return nil, err
		}
		resp.Forms = append(resp.Forms, rfd.Form{URL: u})
	}
	c.AddValue("clarifications/count", strconv.Itoa(len(resp.Forms)))
	return resp, nil
}
