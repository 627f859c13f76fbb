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

	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox/registry"
)

const testTopic = "stockyard-domain"

func TestProcessBatchRetriesFailureAndPublishesRest(t *testing.T) {
	first := outboxRow(t, enums.EventPaymentOrderCreated, enums.AggregatePaymentOrder, 0)
	second := outboxRow(t, enums.EventPaymentOrderCreated, enums.AggregatePaymentOrder, 0)
	repo := &stubRepo{events: []models.OutboxEvent{first, second}}
	pub := &scriptedPublisher{errs: []error{errors.New("deadline exceeded"), nil}}
	svc := newRelay(t, repo, pub, resolvesTo(&payloads.PaymentOrderCreatedEvent{}), 5)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, repo.published)
	assert.Empty(t, repo.terminal)
}

func TestProcessBatchEmptyReportsIdle(t *testing.T) {
	svc := newRelay(t, &stubRepo{}, &scriptedPublisher{}, resolvesTo(&payloads.InquiryCreatedEvent{}), 5)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestPublishedMessageCarriesRoutingAttributes(t *testing.T) {
	row := outboxRow(t, enums.EventBookingConfirmed, enums.AggregateBooking, 0)
	repo := &stubRepo{events: []models.OutboxEvent{row}}
	pub := &scriptedPublisher{}
	svc := newRelay(t, repo, pub, resolvesTo(&payloads.BookingConfirmedEvent{}), 5)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.sent, 1)

	attrs := pub.sent[0].Attributes
	assert.Equal(t, string(enums.EventBookingConfirmed), attrs["event_type"])
	assert.Equal(t, string(enums.AggregateBooking), attrs["aggregate_type"])
	assert.Equal(t, row.AggregateID.String(), attrs["aggregate_id"])
	assert.Equal(t, row.ID.String(), attrs["event_id"])
	assert.Equal(t, "1", attrs["version"])
	assert.JSONEq(t, string(row.Payload), string(pub.sent[0].Data))
	assert.Equal(t, []uuid.UUID{row.ID}, repo.published)
}

func TestMissingPublisherDeadLetters(t *testing.T) {
	row := outboxRow(t, enums.EventInquiryCreated, enums.AggregateInquiry, 0)
	repo := &stubRepo{events: []models.OutboxEvent{row}}
	svc := newRelay(t, repo, nil, resolvesTo(&payloads.InquiryCreatedEvent{}), 5)
	svc.publishers = func(string) publisher { return nil }

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, repo.dead, 1)
	assert.Equal(t, enums.OutboxDLQReasonUnroutable, repo.dead[0].ErrorReason)
	assert.Equal(t, []uuid.UUID{row.ID}, repo.terminal)
	assert.Empty(t, repo.published)
}

func TestUnresolvableRowDeadLettersWithPayload(t *testing.T) {
	row := outboxRow(t, enums.EventPaymentOrderFailed, enums.AggregatePaymentOrder, 0)
	repo := &stubRepo{events: []models.OutboxEvent{row}}
	resolver := &stubResolver{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	svc := newRelay(t, repo, &scriptedPublisher{}, resolver, 5)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	require.Len(t, repo.dead, 1)

	entry := repo.dead[0]
	assert.Equal(t, row.ID, entry.EventID)
	assert.Equal(t, []byte(row.Payload), []byte(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "invalid payload")
}

func TestFinalAttemptDeadLetters(t *testing.T) {
	row := outboxRow(t, enums.EventPaymentOrderCreated, enums.AggregatePaymentOrder, 1)
	repo := &stubRepo{events: []models.OutboxEvent{row}}
	pub := &scriptedPublisher{errs: []error{errors.New("unavailable")}}
	svc := newRelay(t, repo, pub, resolvesTo(&payloads.PaymentOrderCreatedEvent{}), 2)

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, repo.dead, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, repo.dead[0].ErrorReason)
	assert.Equal(t, 1, repo.dead[0].AttemptCount)
	assert.Empty(t, repo.failed)
}

func TestRunStopsWhenPingFails(t *testing.T) {
	svc := newRelay(t, &stubRepo{}, &scriptedPublisher{}, resolvesTo(&payloads.InquiryCreatedEvent{}), 5)
	svc.db = &stubDB{pingErr: errors.New("connection refused")}

	err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database ping failed")
}

func TestRunReturnsOnCancel(t *testing.T) {
	svc := newRelay(t, &stubRepo{}, &scriptedPublisher{}, resolvesTo(&payloads.InquiryCreatedEvent{}), 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
}

func newRelay(t *testing.T, repo *stubRepo, pub publisher, res resolver, maxAttempts int) *Relay {
	t.Helper()
	cfg := &config.Config{
		Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: maxAttempts},
		PubSub: config.PubSubConfig{DomainTopic: testTopic},
	}
	svc, err := NewRelay(RelayParams{
		Config:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         &stubDB{},
		PubSub:     stubTopics{},
		Store:      repo,
		Registry:   res,
		Publishers: func(string) publisher { return pub },
	})
	require.NoError(t, err)
	return svc
}

func outboxRow(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, attempts int) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    id.String(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

func resolvesTo(payload any) *stubResolver {
	return &stubResolver{payload: payload}
}

type stubResolver struct {
	payload any
	err     error
}

func (s *stubResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: testTopic, AggregateType: event.AggregateType},
		Envelope:   outbox.PayloadEnvelope{Version: 1, EventID: event.ID.String(), OccurredAt: time.Now()},
		Payload:    s.payload,
	}, nil
}

type stubRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	dead      []models.OutboxDLQ
}

func (s *stubRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return s.events, nil
}

func (s *stubRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *stubRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	s.terminal = append(s.terminal, id)
	return nil
}

func (s *stubRepo) InsertDeadLetterTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	s.dead = append(s.dead, entry)
	return nil
}

type stubDB struct {
	pingErr error
}

func (s *stubDB) Ping(context.Context) error { return s.pingErr }

func (s *stubDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type stubTopics struct{}

func (stubTopics) Ping(context.Context) error                 { return nil }
func (stubTopics) DomainPublisher() *gcppubsub.Publisher      { return nil }
func (stubTopics) Publisher(name string) *gcppubsub.Publisher { return nil }

// scriptedPublisher returns errs in order, then succeeds.
type scriptedPublisher struct {
	errs []error
	sent []*gcppubsub.Message
}

func (s *scriptedPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	s.sent = append(s.sent, msg)
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	return stubResult{err: err}
}

type stubResult struct {
	err error
}

func (r stubResult) Get(context.Context) (string, error) {
	return "msg-id", r.err
}
