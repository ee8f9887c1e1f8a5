package api

import (
	"bytes"
	"encoding/json"
)

// Envelope is the wrapper the backend puts around every JSON response.
// Older endpoints report `status: "success"` instead of `success: true`.
type Envelope struct {
	Success *bool           `json:"success,omitempty"`
	Status  *string         `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Present reports whether the body carried envelope markers at all.
func (e Envelope) Present() bool {
	return e.Success != nil || e.Status != nil
}

// OK reports a successful envelope.
func (e Envelope) OK() bool {
	if e.Success != nil {
		return *e.Success
	}
	if e.Status != nil {
		return *e.Status == "success"
	}
	return false
}

// Body returns data, falling back to payload.
func (e Envelope) Body() json.RawMessage {
	if isEmptyJSON(e.Data) {
		return e.Payload
	}
	return e.Data
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

type tokenBody struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

func (b tokenBody) value() string {
	if b.Token != "" {
		return b.Token
	}
	return b.AccessToken
}

type existsBody struct {
	Exists *bool `json:"exists"`
}
