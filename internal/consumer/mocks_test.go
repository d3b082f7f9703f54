package consumer

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fjod/go_cart/internal/cart"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/publisher"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type MockReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	Committed []int64
	FetchErr  error
}

func (m *MockReader) push(msg kafka.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.Offset = int64(len(m.queue) + len(m.Committed))
	m.queue = append(m.queue, msg)
}

func (m *MockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if m.FetchErr != nil {
		m.mu.Unlock()
		return kafka.Message{}, m.FetchErr
	}
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *MockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.Committed = append(m.Committed, msg.Offset)
	}
	return nil
}

func (m *MockReader) Close() error { return nil }

func (m *MockReader) committed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.Committed...)
}

func orderMessage(eventType string, ev domain.OrderEvent) kafka.Message {
	value, _ := json.Marshal(ev)
	return kafka.Message{
		Key:     []byte(ev.OrderID),
		Value:   value,
		Headers: []kafka.Header{{Key: publisher.HeaderEventType, Value: []byte(eventType)}},
	}
}

type prunedCall struct {
	UserID  string
	OrderID string
	Lines   []domain.OrderLine
}

// MockCarts records prune calls. Users with a Store get the real line removal.
type MockCarts struct {
	mu     sync.Mutex
	Pruned []prunedCall
	Stores map[string]*cart.Store
	Err    error
}

func (m *MockCarts) RemovePurchased(_ context.Context, userID, orderID string, lines []domain.OrderLine) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Pruned = append(m.Pruned, prunedCall{UserID: userID, OrderID: orderID, Lines: lines})
	if st, ok := m.Stores[userID]; ok {
		if err := st.RemovePurchased(orderID, lines); err != nil {
			return nil, err
		}
		c := st.Snapshot()
		return &c, nil
	}
	return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
}

func (m *MockCarts) pruned() []prunedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]prunedCall(nil), m.Pruned...)
}

type MockOrders struct {
	Orders map[uuid.UUID]*domain.Order
	Err    error
}

func (m *MockOrders) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	o, ok := m.Orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

type MockSender struct {
	Sent []uuid.UUID
	Err  error
}

func (m *MockSender) SendReceipt(_ context.Context, order *domain.Order) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, order.ID)
	return nil
}
