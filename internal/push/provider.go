package push

import (
	"context"
	"errors"
)

var (
	// ErrUnregistered marks a token the provider no longer recognises; callers may prune it.
	ErrUnregistered = errors.New("push: device token unregistered")
	// ErrDeviceOffline marks a token with no live delivery channel right now.
	ErrDeviceOffline = errors.New("push: device offline")
)

// Payload is the message delivered to a device.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Result is the outcome of a single token delivery.
type Result struct {
	Token string
	Err   error
}

// OK reports whether the delivery succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Provider sends one payload to a batch of device tokens. Implementations
// return one Result per token; a non-nil error means the whole batch failed
// in transport.
type Provider interface {
	SendBatch(ctx context.Context, tokens []string, payload Payload) ([]Result, error)
}

// NopProvider accepts every delivery without sending anything.
type NopProvider struct{}

// SendBatch reports success for each token.
func (NopProvider) SendBatch(_ context.Context, tokens []string, _ Payload) ([]Result, error) {
	results := make([]Result, len(tokens))
	for i, token := range tokens {
		results[i] = Result{Token: token}
	}
	return results, nil
}
