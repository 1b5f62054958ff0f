package soap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"time"
)

// Exchange describes one completed request/response pair. It is returned even when the call
// fails with a fault, so that tests can make assertions about the transport-level details.
type Exchange struct {
	RequestHeader  Header
	ResponseHeader Header
	StatusCode     int
	ContentType    string
	RequestBody    []byte
	ResponseBody   []byte
	Duration       time.Duration
}

// Client performs SOAP 1.2 calls over HTTP.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{httpClient: httpClient, logger: logger}
}

// Call sends request to url with the given WS-Addressing action and decodes the response payload
// into response, which may be nil if the caller only wants the Exchange. If the service answers
// with a fault, the returned error is a *Fault.
func (c *Client) Call(ctx context.Context, url, action string, request, response interface{}) (*Exchange, error) {
	h := RequestHeader(url, action)
	body, err := Encode(h, request)
	if err != nil {
		return nil, err
	}
	ex := &Exchange{RequestHeader: h, RequestBody: body}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ex, fmt.Errorf("creating SOAP request: %w", err)
	}
	req.Header.Set("Content-Type", ContentType(action))

	if c.logger.Enabled(ctx, slog.LevelDebug) {
		dump, _ := httputil.DumpRequestOut(req, true)
		c.logger.Debug("SOAP request\n" + string(dump))
	}
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ex, fmt.Errorf("performing SOAP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ex, fmt.Errorf("reading SOAP response: %w", err)
	}
	ex.Duration = time.Since(start)
	ex.StatusCode = resp.StatusCode
	ex.ContentType = resp.Header.Get("Content-Type")
	ex.ResponseBody = respBody

	if c.logger.Enabled(ctx, slog.LevelDebug) {
		dump, _ := httputil.DumpResponse(resp, false)
		c.logger.Debug(fmt.Sprintf("SOAP response (%s)\n%s%s", ex.Duration, dump, respBody))
	}

	msg, err := Decode(respBody)
	if err != nil {
		return ex, fmt.Errorf("decoding SOAP response (HTTP %d): %w", resp.StatusCode, err)
	}
	ex.ResponseHeader = msg.Header
	if msg.Fault != nil {
		return ex, msg.Fault
	}
	if response != nil {
		if err := msg.DecodePayload(response); err != nil {
			return ex, err
		}
	}
	return ex, nil
}
