package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"codebattle/internal/common/mq"
	"codebattle/internal/match/model"
	appErr "codebattle/pkg/errors"
)

// ResultEventPublisher hands finished matches to the persistence collaborator.
// Storage of results and history reads live in another service; this side only
// emits events.
type ResultEventPublisher interface {
	PublishFinishedMatch(ctx context.Context, finished model.FinishedMatch) error
}

// MQResultEventPublisher publishes finished matches to a message queue topic.
type MQResultEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQResultEventPublisher creates a new MQ result event publisher.
func NewMQResultEventPublisher(producer mq.Producer, topic string) *MQResultEventPublisher {
	return &MQResultEventPublisher{producer: producer, topic: topic}
}

// PublishFinishedMatch publishes one finished match event.
func (p *MQResultEventPublisher) PublishFinishedMatch(ctx context.Context, finished model.FinishedMatch) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("result publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("result topic is required")
	}
	if finished.MatchID == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("match id is required")
	}
	payload, err := json.Marshal(finished)
	if err != nil {
		return fmt.Errorf("marshal finished match failed: %w", err)
	}
	message := &mq.Message{ID: finished.MatchID, Body: payload}
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.PersistenceFailure, "publish finished match failed")
	}
	return nil
}
