package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/taskhub/internal/models"
	"github.com/charlesng35/taskhub/internal/push"
	"github.com/charlesng35/taskhub/pkg/logger"
	"github.com/charlesng35/taskhub/pkg/metrics"
)

// DefaultPushTimeout bounds the delivery phase of a fanout.
const DefaultPushTimeout = 10 * time.Second

// SendInput describes one notification for a set of recipients.
type SendInput struct {
	RecipientIDs    []string
	Title           string
	Message         string
	Type            string
	RelatedEntityID string
	Data            map[string]string
}

// FanoutResult reports what happened to a fanout.
type FanoutResult struct {
	Saved  int `json:"saved"`
	Pushed int `json:"pushed"`
	Failed int `json:"failed"`
}

// TokenResolver maps users to their device tokens.
type TokenResolver interface {
	TokensForUsers(ctx context.Context, userIDs []string) ([]string, error)
	RemoveTokens(ctx context.Context, tokens []string) (int64, error)
}

// Dispatcher delivers a payload to device tokens.
type Dispatcher interface {
	Deliver(ctx context.Context, tokens []string, payload push.Payload) (DeliveryReport, error)
}

// NotificationRecorder persists notification records.
type NotificationRecorder interface {
	InsertMany(ctx context.Context, records []models.Notification) error
}

// NotificationFanout persists a notification per recipient and then pushes it to their devices.
type NotificationFanout struct {
	store       NotificationRecorder
	tokens      TokenResolver
	dispatcher  Dispatcher
	pushTimeout time.Duration
	log         *zap.Logger
}

// NotificationFanoutOption customises the fanout.
type NotificationFanoutOption func(*NotificationFanout)

// WithPushTimeout bounds the delivery phase.
func WithPushTimeout(timeout time.Duration) NotificationFanoutOption {
	return func(f *NotificationFanout) {
		if timeout > 0 {
			f.pushTimeout = timeout
		}
	}
}

// WithFanoutLogger overrides the fanout logger.
func WithFanoutLogger(log *zap.Logger) NotificationFanoutOption {
	return func(f *NotificationFanout) {
		if log != nil {
			f.log = log
		}
	}
}

// NewNotificationFanout constructs the fanout.
func NewNotificationFanout(store NotificationRecorder, tokens TokenResolver, dispatcher Dispatcher, opts ...NotificationFanoutOption) (*NotificationFanout, error) {
	if store == nil {
		return nil, errors.New("notification fanout: store is required")
	}
	if tokens == nil {
		return nil, errors.New("notification fanout: token resolver is required")
	}
	if dispatcher == nil {
		return nil, errors.New("notification fanout: dispatcher is required")
	}
	f := &NotificationFanout{
		store:       store,
		tokens:      tokens,
		dispatcher:  dispatcher,
		pushTimeout: DefaultPushTimeout,
		log:         logger.WithModule("fanout"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Send persists one record per distinct recipient and pushes to their devices.
// Only a persistence failure is returned as an error; delivery problems are
// reported through the result counts.
func (f *NotificationFanout) Send(ctx context.Context, input SendInput) (FanoutResult, error) {
	ctx = ensureContext(ctx)
	recipients := normaliseIDs(input.RecipientIDs)
	if len(recipients) == 0 {
		return FanoutResult{}, nil
	}

	notificationType := strings.TrimSpace(input.Type)
	started := time.Now()
	defer func() {
		metrics.FanoutLatency.WithLabelValues(notificationType).Observe(time.Since(started).Seconds())
	}()

	records, err := buildNotifications(recipients, input)
	if err != nil {
		return FanoutResult{}, ErrNotificationPersist.WithInternal(err)
	}
	if err := f.store.InsertMany(ctx, records); err != nil {
		return FanoutResult{}, ErrNotificationPersist.WithInternal(err)
	}
	metrics.NotificationsSaved.WithLabelValues(notificationType).Add(float64(len(records)))

	result := FanoutResult{Saved: len(records)}

	tokens, err := f.tokens.TokensForUsers(ctx, recipients)
	if err != nil {
		f.log.Warn("resolve device tokens failed", zap.String("type", notificationType), zap.Error(err))
		return result, nil
	}
	if len(tokens) == 0 {
		return result, nil
	}

	pushCtx, cancel := context.WithTimeout(ctx, f.pushTimeout)
	defer cancel()

	report, err := f.dispatcher.Deliver(pushCtx, tokens, pushPayload(input, notificationType))
	if err != nil {
		f.log.Warn("push delivery failed",
			zap.String("type", notificationType),
			zap.Int("tokens", len(tokens)),
			zap.Error(err),
		)
		result.Failed = len(tokens)
		return result, nil
	}

	result.Pushed = report.SuccessCount
	result.Failed = report.FailureCount
	f.prune(ctx, report.Unregistered)
	return result, nil
}

func (f *NotificationFanout) prune(ctx context.Context, tokens []string) {
	if len(tokens) == 0 {
		return
	}
	removed, err := f.tokens.RemoveTokens(ctx, tokens)
	if err != nil {
		f.log.Warn("prune unregistered tokens failed", zap.Int("tokens", len(tokens)), zap.Error(err))
		return
	}
	f.log.Debug("pruned unregistered tokens", zap.Int64("removed", removed))
}

func buildNotifications(recipients []string, input SendInput) ([]models.Notification, error) {
	var data datatypes.JSON
	if len(input.Data) > 0 {
		encoded, err := json.Marshal(input.Data)
		if err != nil {
			return nil, fmt.Errorf("encode data: %w", err)
		}
		data = datatypes.JSON(encoded)
	}

	var related *string
	if id := strings.TrimSpace(input.RelatedEntityID); id != "" {
		related = &id
	}

	records := make([]models.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		records = append(records, models.Notification{
			RecipientID:     recipient,
			Type:            strings.TrimSpace(input.Type),
			Title:           strings.TrimSpace(input.Title),
			Message:         strings.TrimSpace(input.Message),
			RelatedEntityID: related,
			Data:            data,
			RelatedExists:   true,
		})
	}
	return records, nil
}

func pushPayload(input SendInput, notificationType string) push.Payload {
	data := make(map[string]string, len(input.Data)+2)
	for key, value := range input.Data {
		data[key] = value
	}
	data["type"] = notificationType
	if id := strings.TrimSpace(input.RelatedEntityID); id != "" {
		data["related_entity_id"] = id
	}
	return push.Payload{
		Title: strings.TrimSpace(input.Title),
		Body:  strings.TrimSpace(input.Message),
		Data:  data,
	}
}
