package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/signadot/scenesync/system/syncd/api"
)

// Transport delivers a payload to a sync server and returns the artifact.
//
// A server asking for resynchronization must be reported as an error
// matching api.ErrResyncRequired.
type Transport interface {
	Send(ctx context.Context, p *api.Payload) ([]byte, error)
}

// StatusError is a non-200 response from the server.
type StatusError struct {
	Status int
	Err    *api.Error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %v", e.Status, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// HTTPTransport posts payloads to the render endpoint of a sync server.
type HTTPTransport struct {
	// URL is the base URL of the server, e.g. http://localhost:8080.
	URL string
	// Client is http.DefaultClient when nil.
	Client *http.Client
}

// NewHTTPTransport creates an HTTPTransport for the server at url.
func NewHTTPTransport(url string) *HTTPTransport {
	return &HTTPTransport{URL: url}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, p *api.Payload) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	url := strings.TrimSuffix(t.URL, "/") + api.RenderPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	c := t.Client
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return data, nil
	}
	return nil, statusError(resp.StatusCode, data)
}

func statusError(status int, body []byte) *StatusError {
	e := &api.Error{}
	if err := json.Unmarshal(body, e); err != nil || e.Code == "" {
		// the status decides the code, whatever the body says
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(status)
		}
		e = api.NewError(api.CodeFor(status), msg)
	}
	if status == http.StatusGone && !errors.Is(e, api.ErrResyncRequired) {
		e = api.NewError(api.ErrCodeResyncRequired, e.Message)
	}
	return &StatusError{Status: status, Err: e}
}
