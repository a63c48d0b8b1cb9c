package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tradebridge-io/tradebridge-backend/pkg/config"
	"github.com/tradebridge-io/tradebridge-backend/pkg/db/models"
	"github.com/tradebridge-io/tradebridge-backend/pkg/enums"
	"github.com/tradebridge-io/tradebridge-backend/pkg/logger"
	"github.com/tradebridge-io/tradebridge-backend/pkg/outbox"
)

type fakeDB struct{}

func (f *fakeDB) Ping(ctx context.Context) error { return nil }

func (f *fakeDB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutboxRepo struct {
	events []models.OutboxEvent

	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (s *stubOutboxRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	out := s.events
	s.events = nil
	return out, nil
}

func (s *stubOutboxRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *stubOutboxRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	s.terminal = append(s.terminal, id)
	return nil
}

type stubDLQ struct {
	entries []models.OutboxDLQ
}

func (s *stubDLQ) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	s.entries = append(s.entries, entry)
	return nil
}

type stubResult struct {
	err error
}

func (s stubResult) Get(ctx context.Context) (string, error) {
	return "server-id", s.err
}

type stubPublisher struct {
	err      error
	messages []*gcppubsub.Message
}

func (s *stubPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	s.messages = append(s.messages, msg)
	return stubResult{err: s.err}
}

func publisherTestService(t *testing.T, repo *stubOutboxRepo, dlq *stubDLQ, pub *stubPublisher, maxAttempts int) *Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Config: &config.Config{
			Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: maxAttempts},
		},
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:            &fakeDB{},
		Repository:    repo,
		DLQRepository: dlq,
		Publisher:     pub,
	})
	require.NoError(t, err)
	return svc
}

func outboxEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()

	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"orderId":"x"}`),
	})
	require.NoError(t, err)

	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		AttemptCount:  attempts,
	}
}

func TestProcessBatch_PublishesAndMarks(t *testing.T) {
	event := outboxEvent(t, 0)
	repo := &stubOutboxRepo{events: []models.OutboxEvent{event}}
	dlq := &stubDLQ{}
	pub := &stubPublisher{}

	svc := publisherTestService(t, repo, dlq, pub, 10)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.published)
	assert.Empty(t, repo.failed)
	assert.Empty(t, dlq.entries)

	require.Len(t, pub.messages, 1)
	attrs := pub.messages[0].Attributes
	assert.Equal(t, string(enums.EventOrderStatusChanged), attrs["event_type"])
	assert.Equal(t, string(enums.AggregateOrder), attrs["aggregate_type"])
	assert.Equal(t, event.AggregateID.String(), attrs["aggregate_id"])
	assert.NotEmpty(t, attrs["event_id"])
}

func TestProcessBatch_FailureIsRetried(t *testing.T) {
	event := outboxEvent(t, 0)
	repo := &stubOutboxRepo{events: []models.OutboxEvent{event}}
	dlq := &stubDLQ{}
	pub := &stubPublisher{err: errors.New("topic unavailable")}

	svc := publisherTestService(t, repo, dlq, pub, 10)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.failed)
	assert.Empty(t, repo.published)
	assert.Empty(t, repo.terminal)
	assert.Empty(t, dlq.entries)
}

func TestProcessBatch_MaxAttemptsGoesToDLQ(t *testing.T) {
	event := outboxEvent(t, 2)
	repo := &stubOutboxRepo{events: []models.OutboxEvent{event}}
	dlq := &stubDLQ{}
	pub := &stubPublisher{err: errors.New("topic unavailable")}

	svc := publisherTestService(t, repo, dlq, pub, 3)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
	assert.Empty(t, repo.failed)

	require.Len(t, dlq.entries, 1)
	assert.Equal(t, event.ID, dlq.entries[0].EventID)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
}

func TestProcessBatch_UndecodablePayloadIsTerminal(t *testing.T) {
	event := outboxEvent(t, 0)
	event.Payload = json.RawMessage(`{not json`)
	repo := &stubOutboxRepo{events: []models.OutboxEvent{event}}
	dlq := &stubDLQ{}
	pub := &stubPublisher{}

	svc := publisherTestService(t, repo, dlq, pub, 10)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Empty(t, pub.messages)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)

	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
}

func TestProcessBatch_EmptyQueueIsQuiet(t *testing.T) {
	repo := &stubOutboxRepo{}
	svc := publisherTestService(t, repo, &stubDLQ{}, &stubPublisher{}, 10)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	base := 500 * time.Millisecond
	current := base
	for i := 0; i < 10; i++ {
		current = nextBackoff(current, base, maxBackoff)
	}
	assert.Equal(t, maxBackoff, current)
}
