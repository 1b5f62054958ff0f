package soap

import (
	"net/http"
)

// WriteResponse writes a successful SOAP 1.2 response.
func WriteResponse(w http.ResponseWriter, h Header, payload interface{}) error {
	body, err := Encode(h, payload)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", ContentType(h.Action))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	return err
}

// WriteFault writes a fault in reply to the given request header, using the HTTP status that
// matches the fault code.
func WriteFault(w http.ResponseWriter, request Header, f *Fault) error {
	h := ReplyHeader(request, ActionFault)
	body, err := Encode(h, f)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", ContentType(ActionFault))
	w.WriteHeader(f.HTTPStatus())
	_, err = w.Write(body)
	return err
}
