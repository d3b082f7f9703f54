package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/publisher"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

// errSkip marks a message that can never succeed; it is committed without retry.
var errSkip = errors.New("skip message")

type handlerFunc func(ctx context.Context, eventType string, ev domain.OrderEvent) error

const (
	maxAttempts  = 3
	retryBackoff = 200 * time.Millisecond
)

// loop fetches, handles and commits messages until ctx is done. A message is
// committed after the handler succeeded, returned errSkip or ran out of attempts.
type loop struct {
	name    string
	reader  MessageReader
	handler handlerFunc
	log     *zap.Logger
}

func (l *loop) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		l.processMessage(ctx)
	}
}

func (l *loop) processMessage(ctx context.Context) {
	m, err := l.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return
		}
		l.log.Warn("error reading message", zap.String("consumer", l.name), zap.Error(err))
		return
	}

	l.handleWithRetry(ctx, m)

	if err := l.reader.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
		l.log.Warn("error committing message",
			zap.String("consumer", l.name), zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

func (l *loop) handleWithRetry(ctx context.Context, m kafka.Message) {
	eventType := publisher.EventType(m)

	var ev domain.OrderEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		l.log.Warn("error parsing message",
			zap.String("consumer", l.name), zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := l.handler(ctx, eventType, ev)
		if err == nil || errors.Is(err, errSkip) {
			return
		}
		l.log.Warn("error handling message",
			zap.String("consumer", l.name),
			zap.String("event_type", eventType),
			zap.String("order_id", ev.OrderID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	l.log.Error("giving up on message",
		zap.String("consumer", l.name), zap.String("order_id", ev.OrderID), zap.Int64("offset", m.Offset))
}

func (l *loop) close() {
	if err := l.reader.Close(); err != nil {
		l.log.Warn("error closing reader", zap.String("consumer", l.name), zap.Error(err))
	}
}

func skip(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errSkip, fmt.Sprintf(format, args...))
}
