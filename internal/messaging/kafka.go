// Package messaging publishes recompute lifecycle events to Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/internal/config"
	"github.com/temcen/stayrec/internal/validation"
	"github.com/temcen/stayrec/pkg/models"
)

const (
	EventRecomputeCompleted = "recompute.completed"
	EventRecomputeFailed    = "recompute.failed"
)

// RecomputeEvent is the message body published after every run.
type RecomputeEvent struct {
	EventType string                 `json:"event_type"`
	Result    models.RecomputeResult `json:"result"`
	Timestamp time.Time              `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher writes recompute events to a single topic. Runs are keyed by
// trigger so that scheduled and on-demand runs each keep their own order.
type EventPublisher struct {
	writer    messageWriter
	validator *validation.SchemaValidator
	topic     string
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewEventPublisher builds a publisher for the configured brokers. Events are
// checked against the recompute-event schema before they are written; a nil
// validator skips that check.
func NewEventPublisher(cfg *config.Config, validator *validation.SchemaValidator, logger *logrus.Logger) *EventPublisher {
	topic := cfg.Kafka.Topics.RecomputeEvents
	return &EventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		validator: validator,
		topic:     topic,
		timeout:   10 * time.Second,
		logger:    logger,
	}
}

// PublishRecompute sends one event describing result.
func (p *EventPublisher) PublishRecompute(ctx context.Context, result *models.RecomputeResult) error {
	event := newRecomputeEvent(result, time.Now())
	if p.validator != nil {
		if err := p.validator.ValidateStruct(validation.SchemaRecomputeEvent, event).Err(); err != nil {
			p.logger.WithError(err).WithField("run_id", result.RunID).Error("Recompute event rejected by schema")
			return fmt.Errorf("invalid recompute event: %w", err)
		}
	}

	msg, err := buildRecomputeMessage(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithError(err).WithField("run_id", result.RunID).Error("Failed to publish recompute event")
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"run_id": result.RunID,
		"status": result.Status,
		"topic":  p.topic,
	}).Info("Recompute event published")

	return nil
}

func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

func newRecomputeEvent(result *models.RecomputeResult, now time.Time) RecomputeEvent {
	eventType := EventRecomputeCompleted
	if result.Status == models.RecomputeStatusFailed {
		eventType = EventRecomputeFailed
	}
	return RecomputeEvent{
		EventType: eventType,
		Result:    *result,
		Timestamp: now,
	}
}

func buildRecomputeMessage(event RecomputeEvent) (kafka.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal recompute event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.Result.Trigger),
		Value: body,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(event.Result.RunID.String())},
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
