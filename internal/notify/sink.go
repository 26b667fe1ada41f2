package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/mantongash/cartsync/pkg/enums"
	"github.com/mantongash/cartsync/pkg/logger"
	"github.com/mantongash/cartsync/pkg/types"
)

// Sink receives collection lifecycle events: a guest collection merged into a
// signed-in account, or a dormant collection purged by the expiry sweep.
type Sink interface {
	Synced(ctx context.Context, identity types.Identity, category enums.Category, itemCount int)
	Expired(ctx context.Context, identity types.Identity, category enums.Category, itemCount int)
}

const (
	eventSynced  = "collection.synced"
	eventExpired = "collection.expired"
)

// SyncedEvent is the published payload.
type SyncedEvent struct {
	Event     string    `json:"event"`
	Identity  string    `json:"identity"`
	Category  string    `json:"category"`
	ItemCount int       `json:"item_count"`
	EmittedAt time.Time `json:"emitted_at"`
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSubSink publishes sync events to a Pub/Sub topic. Delivery is
// best-effort; failures are logged and dropped.
type PubSubSink struct {
	pub  publisher
	logg *logger.Logger
}

// NewPubSubSink builds the production sink.
func NewPubSubSink(pub publisher, logg *logger.Logger) (*PubSubSink, error) {
	if pub == nil {
		return nil, errors.New("publisher required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &PubSubSink{pub: pub, logg: logg}, nil
}

func (s *PubSubSink) Synced(ctx context.Context, identity types.Identity, category enums.Category, itemCount int) {
	s.publish(ctx, eventSynced, identity, category, itemCount)
}

func (s *PubSubSink) Expired(ctx context.Context, identity types.Identity, category enums.Category, itemCount int) {
	s.publish(ctx, eventExpired, identity, category, itemCount)
}

func (s *PubSubSink) publish(ctx context.Context, event string, identity types.Identity, category enums.Category, itemCount int) {
	payload, err := json.Marshal(SyncedEvent{
		Event:     event,
		Identity:  identity.Namespace(),
		Category:  category.String(),
		ItemCount: itemCount,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logg.Error(ctx, "failed to encode collection event", err)
		return
	}

	result := s.pub.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event":    event,
			"category": category.String(),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		s.logg.Error(ctx, "failed to publish collection event", err)
	}
}

// LogSink writes sync events to the log. Used in dev and tests.
type LogSink struct {
	logg *logger.Logger
}

// NewLogSink builds a sink that only logs.
func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

func (s *LogSink) Synced(ctx context.Context, identity types.Identity, category enums.Category, itemCount int) {
	s.log(ctx, "collection synced", identity, category, itemCount)
}

func (s *LogSink) Expired(ctx context.Context, identity types.Identity, category enums.Category, itemCount int) {
	s.log(ctx, "collection expired", identity, category, itemCount)
}

func (s *LogSink) log(ctx context.Context, msg string, identity types.Identity, category enums.Category, itemCount int) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"identity":   identity.Namespace(),
		"category":   category.String(),
		"item_count": itemCount,
	})
	s.logg.Info(logCtx, msg)
}
