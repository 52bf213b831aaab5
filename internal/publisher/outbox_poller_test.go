package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

type MockRepository struct {
	mu           sync.Mutex
	OutboxEvents []*repository.OutboxEvent
	GetErr       error
	MarkErr      error
	ProcessedIDs []int
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	var out []*repository.OutboxEvent
	for _, e := range m.OutboxEvents {
		if !m.processed(e.ID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockRepository) processed(id int) bool {
	for _, p := range m.ProcessedIDs {
		if p == id {
			return true
		}
	}
	return false
}

type MockWriter struct {
	Messages []kafkaGo.Message
	FailKeys map[string]bool
	Closed   bool
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	for _, m := range msgs {
		if w.FailKeys[string(m.Key)] {
			return errors.New("broker unavailable")
		}
		w.Messages = append(w.Messages, m)
	}
	return nil
}

func (w *MockWriter) Close() error {
	w.Closed = true
	return nil
}

func orderEvent(id int, orderID string) *repository.OutboxEvent {
	return &repository.OutboxEvent{
		ID:          id,
		AggregateId: orderID,
		EventType:   repository.EventTypeOrderPlaced,
		Payload:     json.RawMessage(fmt.Sprintf(`{"order_id":%s,"customer_id":"C-1"}`, orderID)),
		CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*repository.OutboxEvent{orderEvent(1, "10"), orderEvent(2, "11")}}
	w := &MockWriter{}
	m := metrics.New(prometheus.NewRegistry())
	poller := newOutboxPoller(repo, w, m, nil)

	poller.processUnpublishedEvents(context.Background())

	require.Len(t, w.Messages, 2)
	assert.Equal(t, "10", string(w.Messages[0].Key))
	assert.Equal(t, "event_type", w.Messages[0].Headers[0].Key)
	assert.Equal(t, repository.EventTypeOrderPlaced, string(w.Messages[0].Headers[0].Value))
	assert.Equal(t, []int{1, 2}, repo.ProcessedIDs)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxEvents.WithLabelValues("published")))
}

func TestProcessUnpublishedEvents_PublishFailureLeavesEventPending(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*repository.OutboxEvent{orderEvent(1, "10"), orderEvent(2, "11")}}
	w := &MockWriter{FailKeys: map[string]bool{"10": true}}
	m := metrics.New(prometheus.NewRegistry())
	poller := newOutboxPoller(repo, w, m, nil)

	poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, []int{2}, repo.ProcessedIDs, "one failed event must not block the rest")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEvents.WithLabelValues("failed")))

	w.FailKeys = nil
	poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, []int{2, 1}, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_RepositoryError(t *testing.T) {
	repo := &MockRepository{GetErr: errors.New("database connection error")}
	w := &MockWriter{}
	poller := newOutboxPoller(repo, w, nil, nil)

	poller.processUnpublishedEvents(context.Background())

	assert.Empty(t, w.Messages)
}

func TestProcessUnpublishedEvents_MarkError(t *testing.T) {
	repo := &MockRepository{
		OutboxEvents: []*repository.OutboxEvent{orderEvent(1, "10")},
		MarkErr:      errors.New("database deadlock"),
	}
	w := &MockWriter{}
	m := metrics.New(prometheus.NewRegistry())
	poller := newOutboxPoller(repo, w, m, nil)

	poller.processUnpublishedEvents(context.Background())

	assert.Len(t, w.Messages, 1)
	assert.Empty(t, repo.ProcessedIDs)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OutboxEvents.WithLabelValues("published")))
}

func TestRun_StopsOnCancelAndClosesWriter(t *testing.T) {
	repo := &MockRepository{}
	w := &MockWriter{}
	poller := newOutboxPoller(repo, w, nil, nil)
	poller.eventTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
	assert.True(t, w.Closed)
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesOrderPlacedToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	createTopic(t, brokerAddr, DefaultTopic)
	time.Sleep(5 * time.Second)

	repo := &MockRepository{OutboxEvents: []*repository.OutboxEvent{orderEvent(1, "42")}}
	poller := NewOutboxPoller(repo, nil, nil, DefaultTopic, brokerAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    DefaultTopic,
		GroupID:  "storefront-test",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)

	assert.Equal(t, "42", string(msg.Key))
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "C-1", payload["customer_id"])

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.processed(1)
	}, 5*time.Second, 100*time.Millisecond)
}
