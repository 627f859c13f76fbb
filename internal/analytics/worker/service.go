package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/internal/analytics/router"
	"github.com/angelmondragon/stockyard-backend/internal/analytics/types"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox"
)

// GuardScope keeps the funnel's replay marks apart from other consumers.
const GuardScope = "consumer:booking-funnel"

type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type replayGuard interface {
	Seen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Service feeds domain events from the analytics subscription into the
// booking funnel. Malformed and unsupported messages are acked and dropped;
// anything that may succeed later is nacked for redelivery.
type Service struct {
	sub     receiver
	handler Handler
	guard   replayGuard
	logg    *logger.Logger
}

func NewService(sub receiver, handler Handler, guard replayGuard, logg *logger.Logger) (*Service, error) {
	switch {
	case sub == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case guard == nil:
		return nil, errors.New("replay guard is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{sub: sub, handler: handler, guard: guard, logg: logg}, nil
}

// Run blocks until ctx is cancelled or the subscription fails.
func (s *Service) Run(ctx context.Context) error {
	return s.sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.process(ctx, msg) == redeliver {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type disposition int

const (
	done disposition = iota
	redeliver
)

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) disposition {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	env, err := decode(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping malformed analytics message")
		return done
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       env.EventID,
		"event_type":     env.EventType,
		"aggregate_type": env.AggregateType,
		"aggregate_id":   env.AggregateID,
	})

	seen, err := s.guard.Seen(ctx, env.EventID)
	if err != nil {
		s.logg.Error(ctx, "replay guard unavailable", err)
		return redeliver
	}
	if seen {
		s.logg.Info(ctx, "analytics event already handled")
		return done
	}

	err = s.handler.Handle(ctx, env)
	switch {
	case err == nil:
		s.logg.Info(ctx, "analytics event handled")
		return done
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(ctx, "event type has no funnel handler")
		return done
	default:
		s.logg.Error(ctx, "analytics handler failed", err)
		if ferr := s.guard.Forget(ctx, env.EventID); ferr != nil {
			s.logg.Error(ctx, "could not clear replay mark", ferr)
		}
		return redeliver
	}
}

// decode joins the message attributes set by the outbox publisher with the
// envelope carried in the body.
func decode(msg *gcppubsub.Message) (types.Envelope, error) {
	body, err := outbox.ParseEnvelope(msg.Data)
	if err != nil {
		return types.Envelope{}, err
	}
	attr := func(name string) string { return strings.TrimSpace(msg.Attributes[name]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return types.Envelope{}, errors.New("aggregate_id attribute missing")
	}

	eventID := strings.TrimSpace(body.EventID)
	if eventID == "" {
		eventID = attr("event_id")
	}
	if _, err := uuid.Parse(eventID); err != nil {
		return types.Envelope{}, fmt.Errorf("event_id %q: %w", eventID, err)
	}

	occurred := body.OccurredAt
	if occurred.IsZero() {
		occurred, _ = time.Parse(time.RFC3339Nano, attr("created_at"))
	}

	return types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurred.UTC(),
		Payload:       body.Data,
	}, nil
}
