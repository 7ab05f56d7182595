package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultWebhookTimeout = 5 * time.Second

// WebhookConfig configures the HTTP push gateway.
type WebhookConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// WebhookProvider posts multicast requests to an HTTP push gateway.
type WebhookProvider struct {
	url    string
	apiKey string
	client *http.Client
}

type multicastRequest struct {
	Tokens       []string          `json:"tokens"`
	Notification multicastMessage  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type multicastMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type multicastResponse struct {
	SuccessCount int                 `json:"successCount"`
	FailureCount int                 `json:"failureCount"`
	Responses    []multicastDelivery `json:"responses"`
}

type multicastDelivery struct {
	Success bool            `json:"success"`
	Error   *multicastError `json:"error,omitempty"`
}

type multicastError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var unregisteredCodes = map[string]struct{}{
	"messaging/registration-token-not-registered": {},
	"messaging/invalid-registration-token":        {},
	"unregistered":                                {},
}

// NewWebhookProvider validates the configuration and builds the provider.
func NewWebhookProvider(cfg WebhookConfig) (*WebhookProvider, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("push webhook: url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookProvider{
		url:    url,
		apiKey: strings.TrimSpace(cfg.APIKey),
		client: &http.Client{Timeout: timeout},
	}, nil
}

// SendBatch posts every token in one request and maps the per-token responses.
func (p *WebhookProvider) SendBatch(ctx context.Context, tokens []string, payload Payload) ([]Result, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(multicastRequest{
		Tokens:       tokens,
		Notification: multicastMessage{Title: payload.Title, Body: payload.Body},
		Data:         payload.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("push webhook: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("push webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push webhook: send: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("push webhook: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded multicastResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("push webhook: decode response: %w", err)
	}

	results := make([]Result, len(tokens))
	for i, token := range tokens {
		results[i] = Result{Token: token}
		if i >= len(decoded.Responses) {
			results[i].Err = errors.New("push webhook: missing delivery response")
			continue
		}
		results[i].Err = deliveryError(decoded.Responses[i])
	}
	return results, nil
}

func deliveryError(delivery multicastDelivery) error {
	if delivery.Success {
		return nil
	}
	if delivery.Error == nil {
		return errors.New("push webhook: delivery failed")
	}
	if _, ok := unregisteredCodes[strings.ToLower(delivery.Error.Code)]; ok {
		return fmt.Errorf("%w: %s", ErrUnregistered, delivery.Error.Code)
	}
	return fmt.Errorf("push webhook: %s: %s", delivery.Error.Code, delivery.Error.Message)
}
