package simulator

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rfd-conformance/rfd-test-harness/archive"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/soap"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

// Dependencies are the shared resources handed to every endpoint service.
type Dependencies struct {
	Archive archive.Store
	Logger  *slog.Logger
}

// Service is the SOAP handler for one simulator endpoint. POST requests are RFD transactions,
// GET ?wsdl returns the service description, and any other method gets a 405.
type Service struct {
	config      EndpointConfig
	forms       map[string]Test
	defaultTest Test
	deps        Dependencies
	router      *mux.Router
}

func NewFormManager(config EndpointConfig, deps Dependencies) (*Service, error) {
	config.Actor = rfd.ActorFormManager
	return NewService(config, deps)
}

func NewFormReceiver(config EndpointConfig, deps Dependencies) (*Service, error) {
	config.Actor = rfd.ActorFormReceiver
	return NewService(config, deps)
}

func NewFormProcessor(config EndpointConfig, deps Dependencies) (*Service, error) {
	config.Actor = rfd.ActorFormProcessor
	return NewService(config, deps)
}

func NewFormArchiver(config EndpointConfig, deps Dependencies) (*Service, error) {
	config.Actor = rfd.ActorFormArchiver
	return NewService(config, deps)
}

// NewService creates the tests configured for the endpoint and builds its handler.
func NewService(config EndpointConfig, deps Dependencies) (*Service, error) {
	if _, err := rfd.ParseActor(string(config.Actor)); err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", config.Name, err)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Service{
		config: config,
		forms:  make(map[string]Test),
		deps:   deps,
	}
	for formID, ref := range config.Tests.Forms {
		t, err := Lookup(ref.Test, ref.Params)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q, form %q: %w", config.Name, formID, err)
		}
		s.forms[formID] = t
	}
	if ref := config.Tests.Default; ref != nil {
		t, err := Lookup(ref.Test, ref.Params)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q, default test: %w", config.Name, err)
		}
		s.defaultTest = t
	}

	router := mux.NewRouter()
	router.Methods(http.MethodPost).HandlerFunc(s.handleSOAP)
	router.Methods(http.MethodGet).HandlerFunc(s.handleGet)
	s.router = router
	return s, nil
}

func (s *Service) Config() EndpointConfig { return s.config }

func (s *Service) Actor() rfd.Actor { return s.config.Actor }

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.URL.Query()["wsdl"]; !ok {
		http.Error(w, fmt.Sprintf("%s endpoint %q accepts SOAP 1.2 POST requests; append ?wsdl for its description",
			s.config.Actor.ServiceName(), s.config.Name), http.StatusNotFound)
		return
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	doc, err := WSDL(s.config.Actor, fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = w.Write(doc)
}

// lookup picks the test for a dispatch key: the form's own test, then the endpoint default.
func (s *Service) lookup(key string) Test {
	if t, ok := s.forms[key]; ok && key != "" {
		return t
	}
	return s.defaultTest
}

// paramsFor returns the configured parameters of the test chosen for a dispatch key.
func (s *Service) paramsFor(key string) Params {
	if ref, ok := s.config.Tests.Forms[key]; ok && key != "" {
		return ref.Params
	}
	if s.config.Tests.Default != nil {
		return s.config.Tests.Default.Params
	}
	return nil
}

func (s *Service) handleSOAP(w http.ResponseWriter, r *http.Request) {
	l := wslog.FromContext(r.Context())
	if l == nil {
		l = wslog.New(s.config.Name, string(s.config.Actor), wslog.Inbound)
		defer func() { _ = l.Close() }()
	}
	logger := s.deps.Logger.With("endpoint", s.config.Name, "id", l.ID())

	var header soap.Header
	fail := func(f *soap.Fault) {
		_ = l.SetFault(string(f.Code), f.Status, f.Reason)
		logger.Info("Returning SOAP fault", "code", f.Code, "status", f.Status, "reason", f.Reason)
		if err := soap.WriteFault(w, header, f); err != nil {
			logger.Warn("Could not write fault", "error", err)
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		fail(soap.SenderFault(rfd.StatusInvalidRequest, "could not read request: %s", err))
		return
	}
	_, contentAction, err := soap.ParseContentType(r.Header.Get("Content-Type"), r.Header.Get("SOAPAction"))
	if err != nil {
		fail(soap.SenderFault(rfd.StatusInvalidRequest, "%s", err))
		return
	}
	msg, err := soap.Decode(body)
	if err != nil {
		fail(soap.SenderFault(rfd.StatusInvalidRequest, "malformed SOAP envelope: %s", err))
		return
	}
	header = msg.Header

	action := msg.Header.Action
	if action == "" {
		action = contentAction
	}
	txn, ok := rfd.TransactionForAction(action)
	if !ok && action == "" {
		txn, ok = rfd.TransactionForPayload(msg.PayloadName.Local)
		action = txn.Action()
	}
	_ = l.SetTransaction(string(txn), action)
	if !ok || !s.config.Actor.Supports(txn) {
		fail(soap.SenderFault(rfd.StatusActionNotSupported, "%s does not support action %q",
			s.config.Actor.ServiceName(), action))
		return
	}

	resp, err := s.dispatch(r, l, logger, msg, txn, body)
	if err != nil {
		fail(soap.AsFault(err))
		return
	}
	if err := soap.WriteResponse(w, soap.ReplyHeader(msg.Header, txn.ResponseAction()), resp); err != nil {
		logger.Warn("Could not write response", "error", err)
	}
}

// dispatch decodes the request payload, selects the test by dispatch key and runs the operation.
// Panics in the test become Receiver faults.
func (s *Service) dispatch(
	r *http.Request,
	l *wslog.Log,
	logger *slog.Logger,
	msg *soap.Message,
	txn rfd.Transaction,
	body []byte,
) (resp interface{}, err error) {
	var (
		key     string
		request interface{}
	)
	switch txn {
	case rfd.TransactionRetrieveForm:
		req := &rfd.RetrieveFormRequest{}
		request = req
		if err := msg.DecodePayload(req); err != nil {
			return nil, soap.SenderFault(rfd.StatusInvalidRequest, "%s", err)
		}
		key = req.WorkflowData.FormID
	case rfd.TransactionSubmitForm, rfd.TransactionArchiveForm:
		if txn == rfd.TransactionSubmitForm {
			request = &rfd.SubmitFormRequest{}
		} else {
			request = &rfd.ArchiveFormRequest{}
		}
		if err := msg.DecodePayload(request); err != nil {
			return nil, soap.SenderFault(rfd.StatusInvalidRequest, "%s", err)
		}
		key, _ = wslog.FirstValue(body, "formID")
	case rfd.TransactionRetrieveClarifications:
		req := &rfd.RetrieveClarificationsRequest{}
		request = req
		if err := msg.DecodePayload(req); err != nil {
			return nil, soap.SenderFault(rfd.StatusInvalidRequest, "%s", err)
		}
		key = req.OrgID
	}
	_ = l.SetFormID(key)

	test := s.lookup(key)
	if test == nil {
		return nil, soap.SenderFault(rfd.StatusUnknownFormID, "no test is configured for %q", key)
	}
	_ = l.SetTestName(test.Name())
	logger.Debug("Dispatching", "transaction", txn, "key", key, "test", test.Name())

	c := &Context{
		ctx:      r.Context(),
		Log:      l,
		Logger:   logger,
		Archive:  s.deps.Archive,
		Endpoint: s.config.Name,
		Actor:    s.config.Actor,
		Header:   msg.Header,
		Params:   s.paramsFor(key),
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Test panicked", "test", test.Name(), "panic", p)
			resp, err = nil, soap.ReceiverFault(soap.StatusInternalError, "test %q failed: %v", test.Name(), p)
		}
	}()

	notImplemented := soap.ReceiverFault(rfd.StatusOperationNotImplemented,
		"test %q does not implement %s", test.Name(), txn.Operation())
	switch req := request.(type) {
	case *rfd.RetrieveFormRequest:
		t, ok := test.(RetrieveFormTest)
		if !ok {
			return nil, notImplemented
		}
		out, err := t.RetrieveForm(c, req)
		if err != nil || out == nil {
			return nilIfError(out, err)
		}
		if err := out.Form.Validate(); err != nil {
			return nil, soap.ReceiverFault(soap.StatusInternalError, "test %q: %s", test.Name(), err)
		}
		return out, nil
	case *rfd.SubmitFormRequest:
		t, ok := test.(SubmitFormTest)
		if !ok {
			return nil, notImplemented
		}
		return nilIfError(t.SubmitForm(c, req))
	case *rfd.ArchiveFormRequest:
		t, ok := test.(ArchiveFormTest)
		if !ok {
			return nil, notImplemented
		}
		return nilIfError(t.ArchiveForm(c, req))
	case *rfd.RetrieveClarificationsRequest:
		t, ok := test.(ClarificationsTest)
		if !ok {
			return nil, notImplemented
		}
		return nilIfError(t.RetrieveClarifications(c, req))
	}
	return nil, notImplemented
}

// nilIfError keeps a typed nil pointer from turning into a non-nil interface value.
func nilIfError[T any](value *T, err error) (interface{}, error) {
	if err != nil || value == nil {
		if err == nil {
			err = soap.ReceiverFault(soap.StatusInternalError, "test returned no response")
		}
		return nil, err
	}
	return value, nil
}
