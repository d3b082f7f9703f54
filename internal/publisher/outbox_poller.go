package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_cart/internal/metrics"
	r "github.com/fjod/go_cart/internal/repository"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const batchSize = 100

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller relays order events written next to the order rows to Kafka. An
// event is marked processed only after the broker acknowledged it, so delivery is
// at least once.
type OutboxPoller struct {
	eventTick   time.Duration
	backlogTick time.Duration
	repo        r.OutboxRepository
	writer      MessageWriter
	metrics     *metrics.ServerMetrics
	log         *zap.Logger
}

func NewOutboxPoller(repo r.OutboxRepository, writer MessageWriter, interval time.Duration, m *metrics.ServerMetrics, log *zap.Logger) *OutboxPoller {
	return &OutboxPoller{
		eventTick:   interval,
		backlogTick: 15 * time.Second,
		repo:        repo,
		writer:      writer,
		metrics:     m,
		log:         log,
	}
}

func NewWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	backlogTicker := time.NewTicker(p.backlogTick)
	defer eventTicker.Stop()
	defer backlogTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-backlogTicker.C:
			p.reportBacklog(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			// keep order per aggregate: stop the batch, retry on the next tick
			p.log.Warn("failed to publish outbox event",
				zap.Int64("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(err))
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error("failed to mark outbox event processed",
				zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		p.log.Debug("outbox event published",
			zap.Int64("event_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.String("order_id", event.AggregateId))
	}
}

func (p *OutboxPoller) reportBacklog(ctx context.Context) {
	n, err := p.repo.CountUnprocessedEvents(ctx)
	if err != nil {
		p.log.Warn("failed to count outbox backlog", zap.Error(err))
		return
	}
	p.metrics.SetOutboxBacklog(n)
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // order id, keeps one order's events on one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

// HeaderEventType names the event carried by a message.
const HeaderEventType = "event_type"

// EventType reads the event_type header of msg.
func EventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == HeaderEventType {
			return string(h.Value)
		}
	}
	return ""
}
