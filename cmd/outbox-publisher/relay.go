package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxIdleBackoff        = 10 * time.Second
	maxJitter             = 250 * time.Millisecond
)

// errUnroutable marks events whose topic has no publisher in this process.
var errUnroutable = errors.New("no publisher for topic")

type txDB interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	DomainPublisher() *gcppubsub.Publisher
	Publisher(name string) *gcppubsub.Publisher
}

// relayStore is the slice of outbox.Repository the relay touches. Every
// call runs inside the batch transaction.
type relayStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	InsertDeadLetterTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type RelayParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       txDB
	PubSub   topicSource
	Store    relayStore
	Registry resolver
	// Publishers overrides topic lookup on PubSub.
	Publishers func(topic string) publisher
}

// Relay moves committed outbox rows for payment orders, bookings and
// inquiries onto Pub/Sub. Rows that can never be delivered land in the DLQ.
type Relay struct {
	logg       *logger.Logger
	db         txDB
	pubsub     topicSource
	store      relayStore
	registry   resolver
	publishers func(topic string) publisher

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	now          func() time.Time
}

func NewRelay(p RelayParams) (*Relay, error) {
	for _, dep := range []struct {
		name    string
		missing bool
	}{
		{"config", p.Config == nil},
		{"logger", p.Logger == nil},
		{"database", p.DB == nil},
		{"pubsub client", p.PubSub == nil},
		{"outbox store", p.Store == nil},
		{"event registry", p.Registry == nil},
	} {
		if dep.missing {
			return nil, fmt.Errorf("outbox relay: %s is required", dep.name)
		}
	}

	r := &Relay{
		logg:         p.Logger,
		db:           p.DB,
		pubsub:       p.PubSub,
		store:        p.Store,
		registry:     p.Registry,
		publishers:   p.Publishers,
		batchSize:    cmp.Or(max(p.Config.Outbox.BatchSize, 0), defaultBatchSize),
		maxAttempts:  cmp.Or(max(p.Config.Outbox.MaxAttempts, 0), defaultMaxAttempts),
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
	if ms := p.Config.Outbox.PollIntervalMS; ms > 0 {
		r.pollInterval = time.Duration(ms) * time.Millisecond
	}
	if r.publishers == nil {
		r.publishers = topicPublishers(p.PubSub, p.Config.PubSub.DomainTopic)
	}
	return r, nil
}

// Run polls until ctx is cancelled. Batch errors back off exponentially up to
// maxIdleBackoff; a full batch is followed immediately by the next one.
func (s *Relay) Run(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{{"database", s.db.Ping}, {"pubsub", s.pubsub.Ping}} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	wait := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = min(wait*2, maxIdleBackoff)
		case processed:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}

		if err := sleep(ctx, wait+rand.N(maxJitter)); err != nil {
			return err
		}
	}
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

// delivery is the result of attempting one outbox row.
type delivery struct {
	outcome outcome
	reason  enums.OutboxDLQErrorReason
	err     error
	topic   string
	eventID string
}

func (s *Relay) processBatch(ctx context.Context) (bool, error) {
	var counts [3]int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.store.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			d := s.deliver(ctx, event)
			if err := s.record(ctx, tx, event, d); err != nil {
				return err
			}
			counts[d.outcome]++
		}
		return nil
	})
	total := counts[outcomePublished] + counts[outcomeRetry] + counts[outcomeDeadLetter]
	if err == nil && total > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"published":     counts[outcomePublished],
			"retried":       counts[outcomeRetry],
			"dead_lettered": counts[outcomeDeadLetter],
		}), "outbox batch relayed")
	}
	return total > 0, err
}

func (s *Relay) deliver(ctx context.Context, event models.OutboxEvent) delivery {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return delivery{outcome: outcomeDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}

	d := delivery{topic: resolved.Descriptor.Topic, eventID: resolved.Envelope.EventID}
	err = s.publish(ctx, event, resolved)
	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		d.outcome = outcomePublished
	case errors.Is(err, errUnroutable):
		d.outcome, d.reason, d.err = outcomeDeadLetter, enums.OutboxDLQReasonUnroutable, err
	case errors.As(err, &nonRetryable):
		d.outcome, d.reason, d.err = outcomeDeadLetter, enums.OutboxDLQReasonNonRetryable, err
	case event.AttemptCount+1 >= s.maxAttempts:
		d.outcome, d.reason = outcomeDeadLetter, enums.OutboxDLQReasonMaxAttempts
		d.err = fmt.Errorf("max publish attempts reached: %w", err)
	default:
		d.outcome, d.err = outcomeRetry, err
	}
	return d
}

func (s *Relay) record(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, d delivery) error {
	fields := s.eventFields(event, d)
	switch d.outcome {
	case outcomePublished:
		if err := s.store.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
	case outcomeRetry:
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
		if err := s.store.MarkFailedTx(tx, event.ID, d.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
	case outcomeDeadLetter:
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event dead-lettered")
		msg := d.err.Error()
		entry := models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   d.reason,
			ErrorMessage:  &msg,
			AttemptCount:  event.AttemptCount,
			FailedAt:      s.now().UTC(),
		}
		if err := s.store.InsertDeadLetterTx(tx, entry); err != nil {
			return fmt.Errorf("insert dlq %s: %w", event.ID, err)
		}
		if err := s.store.MarkTerminalTx(tx, event.ID, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
	}
	return nil
}

func (s *Relay) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return fmt.Errorf("%w %s", errUnroutable, topic)
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// messageAttributes lets subscribers route on event metadata without decoding
// the envelope.
func messageAttributes(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	return map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		"version":        strconv.Itoa(resolved.Envelope.Version),
	}
}

func (s *Relay) eventFields(event models.OutboxEvent, d delivery) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if d.outcome != outcomePublished {
		fields["attempt_count"] = event.AttemptCount + 1
	}
	if d.eventID != "" {
		fields["event_id"] = d.eventID
	}
	if d.topic != "" {
		fields["topic"] = d.topic
	}
	if d.reason != "" {
		fields["error_reason"] = d.reason
	}
	if d.err != nil {
		fields["error"] = d.err.Error()
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func topicPublishers(client topicSource, domainTopic string) func(string) publisher {
	return func(topic string) publisher {
		var p *gcppubsub.Publisher
		if topic == domainTopic {
			p = client.DomainPublisher()
		} else {
			p = client.Publisher(topic)
		}
		if p == nil {
			return nil
		}
		return gcpPublisher{p}
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}
