package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/taskhub/internal/push"
	"github.com/charlesng35/taskhub/pkg/logger"
	"github.com/charlesng35/taskhub/pkg/metrics"
)

// DefaultPushBatchSize mirrors the multicast limit of common push gateways.
const DefaultPushBatchSize = 500

// DeliveryReport aggregates per-token outcomes of one Deliver call.
type DeliveryReport struct {
	SuccessCount int
	FailureCount int
	Unregistered []string
}

// PushDispatcher delivers payloads to device tokens through a push.Provider.
type PushDispatcher struct {
	provider  push.Provider
	batchSize int
	log       *zap.Logger
}

// PushDispatcherOption customises the dispatcher.
type PushDispatcherOption func(*PushDispatcher)

// WithPushBatchSize caps the number of tokens sent per provider call.
func WithPushBatchSize(size int) PushDispatcherOption {
	return func(d *PushDispatcher) {
		if size > 0 {
			d.batchSize = size
		}
	}
}

// WithPushLogger overrides the dispatcher logger.
func WithPushLogger(log *zap.Logger) PushDispatcherOption {
	return func(d *PushDispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NewPushDispatcher constructs a dispatcher. A nil provider delivers nothing and reports success.
func NewPushDispatcher(provider push.Provider, opts ...PushDispatcherOption) *PushDispatcher {
	if provider == nil {
		provider = push.NopProvider{}
	}
	d := &PushDispatcher{
		provider:  provider,
		batchSize: DefaultPushBatchSize,
		log:       logger.WithModule("push"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver sends payload to every token. Failed tokens never block the rest;
// an error is returned only when no chunk reached the provider successfully.
func (d *PushDispatcher) Deliver(ctx context.Context, tokens []string, payload push.Payload) (DeliveryReport, error) {
	ctx = ensureContext(ctx)
	tokens = normaliseIDs(tokens)

	var report DeliveryReport
	if len(tokens) == 0 {
		return report, nil
	}

	var (
		errs         error
		failedChunks int
		chunks       = chunkTokens(tokens, d.batchSize)
	)
	for _, chunk := range chunks {
		results, err := d.provider.SendBatch(ctx, chunk, payload)
		if err != nil {
			failedChunks++
			report.FailureCount += len(chunk)
			errs = multierr.Append(errs, fmt.Errorf("push chunk of %d: %w", len(chunk), err))
			continue
		}
		d.tally(&report, chunk, results)
	}

	metrics.PushDeliveries.WithLabelValues("success").Add(float64(report.SuccessCount))
	metrics.PushDeliveries.WithLabelValues("failure").Add(float64(report.FailureCount))

	if failedChunks == len(chunks) {
		return report, fmt.Errorf("push dispatcher: deliver: %w", errs)
	}
	if errs != nil {
		d.log.Warn("partial push transport failure", zap.Int("failed_chunks", failedChunks), zap.Error(errs))
	}
	return report, nil
}

func (d *PushDispatcher) tally(report *DeliveryReport, chunk []string, results []push.Result) {
	byToken := make(map[string]push.Result, len(results))
	for _, result := range results {
		byToken[result.Token] = result
	}

	for _, token := range chunk {
		result, ok := byToken[token]
		switch {
		case !ok:
			report.FailureCount++
		case result.OK():
			report.SuccessCount++
		default:
			report.FailureCount++
			if errors.Is(result.Err, push.ErrUnregistered) {
				report.Unregistered = append(report.Unregistered, token)
			}
		}
	}
}

func chunkTokens(tokens []string, size int) [][]string {
	if size <= 0 {
		size = DefaultPushBatchSize
	}
	chunks := make([][]string, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, tokens[start:end])
	}
	return chunks
}
