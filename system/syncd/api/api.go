package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Paths served by the sync server.
const (
	RenderPath  = "/render_scene"
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// PayloadType tells how the data of a Payload is to be read.
type PayloadType string

const (
	// Absolute payloads carry a complete scene snapshot.
	Absolute PayloadType = "absolute"
	// Patch payloads carry an RFC 6902 operation list against the last
	// snapshot the server holds for the client.
	Patch PayloadType = "patch"
)

// Payload is the body of a render request.
type Payload struct {
	ClientID string          `json:"client_id"`
	Type     PayloadType     `json:"type"`
	Data     json.RawMessage `json:"data"`
}

// Validate checks the envelope of p, not its data.
func (p *Payload) Validate() error {
	if p.ClientID == "" {
		return Errorf(ErrCodeInvalidPayload, "missing client_id")
	}
	switch p.Type {
	case Absolute, Patch:
	default:
		return Errorf(ErrCodeInvalidPayload, "unknown payload type %q", p.Type)
	}
	if d := bytes.TrimSpace(p.Data); len(d) == 0 || bytes.Equal(d, []byte("null")) {
		return Errorf(ErrCodeInvalidPayload, "missing data")
	}
	return nil
}

// ParsePayload reads and validates the Payload in the body of r. Bodies
// larger than maxBytes are rejected when maxBytes is positive.
func ParsePayload(r *http.Request, maxBytes int64) (*Payload, error) {
	var body io.Reader = r.Body
	if maxBytes > 0 {
		body = io.LimitReader(r.Body, maxBytes+1)
	}
	d, err := io.ReadAll(body)
	if err != nil {
		return nil, Errorf(ErrCodeInvalidPayload, "read body: %v", err)
	}
	if maxBytes > 0 && int64(len(d)) > maxBytes {
		return nil, Errorf(ErrCodeInvalidPayload, "body exceeds %d bytes", maxBytes)
	}
	p := &Payload{}
	if err := json.Unmarshal(d, p); err != nil {
		var se *json.SyntaxError
		if errors.As(err, &se) {
			return nil, Errorf(ErrCodeInvalidPayload, "body is not JSON: %v", err)
		}
		return nil, Errorf(ErrCodeInvalidPayload, "%v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
