package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/taskhub/internal/push"
)

type stubProvider struct {
	mu       sync.Mutex
	batches  [][]string
	failed   map[string]error
	batchErr func(call int) error
}

func (p *stubProvider) SendBatch(_ context.Context, tokens []string, _ push.Payload) ([]push.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	call := len(p.batches)
	p.batches = append(p.batches, append([]string(nil), tokens...))
	if p.batchErr != nil {
		if err := p.batchErr(call); err != nil {
			return nil, err
		}
	}

	results := make([]push.Result, len(tokens))
	for i, token := range tokens {
		results[i] = push.Result{Token: token, Err: p.failed[token]}
	}
	return results, nil
}

func tokenRange(n int) []string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%03d", i)
	}
	return tokens
}

func TestPushDispatcherPerTokenOutcomes(t *testing.T) {
	provider := &stubProvider{failed: map[string]error{
		"tok-001": errors.New("quota"),
		"tok-002": fmt.Errorf("%w: gone", push.ErrUnregistered),
	}}
	dispatcher := NewPushDispatcher(provider)

	report, err := dispatcher.Deliver(context.Background(), append(tokenRange(4), "tok-000"), push.Payload{Title: "x"})
	require.NoError(t, err)
	require.Equal(t, 2, report.SuccessCount)
	require.Equal(t, 2, report.FailureCount)
	require.Equal(t, []string{"tok-002"}, report.Unregistered)
	require.Len(t, provider.batches, 1)
	require.Len(t, provider.batches[0], 4)
}

func TestPushDispatcherChunksLargeBatches(t *testing.T) {
	provider := &stubProvider{}
	dispatcher := NewPushDispatcher(provider, WithPushBatchSize(2))

	report, err := dispatcher.Deliver(context.Background(), tokenRange(5), push.Payload{})
	require.NoError(t, err)
	require.Equal(t, 5, report.SuccessCount)
	require.Len(t, provider.batches, 3)
	require.Len(t, provider.batches[2], 1)
}

func TestPushDispatcherPartialTransportFailure(t *testing.T) {
	provider := &stubProvider{batchErr: func(call int) error {
		if call == 1 {
			return errors.New("connection reset")
		}
		return nil
	}}
	dispatcher := NewPushDispatcher(provider, WithPushBatchSize(2))

	report, err := dispatcher.Deliver(context.Background(), tokenRange(5), push.Payload{})
	require.NoError(t, err)
	require.Equal(t, 3, report.SuccessCount)
	require.Equal(t, 2, report.FailureCount)
}

func TestPushDispatcherTotalTransportFailure(t *testing.T) {
	provider := &stubProvider{batchErr: func(int) error { return errors.New("unreachable") }}
	dispatcher := NewPushDispatcher(provider, WithPushBatchSize(2))

	report, err := dispatcher.Deliver(context.Background(), tokenRange(3), push.Payload{})
	require.Error(t, err)
	require.Equal(t, 3, report.FailureCount)
	require.Zero(t, report.SuccessCount)
}

func TestPushDispatcherEmptyTokens(t *testing.T) {
	provider := &stubProvider{}
	report, err := NewPushDispatcher(provider).Deliver(context.Background(), nil, push.Payload{})
	require.NoError(t, err)
	require.Equal(t, DeliveryReport{}, report)
	require.Empty(t, provider.batches)
}
