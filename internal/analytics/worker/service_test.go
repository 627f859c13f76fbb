package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockyard-backend/internal/analytics/router"
	"github.com/angelmondragon/stockyard-backend/internal/analytics/types"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox"
)

func TestDecodeJoinsAttributesAndBody(t *testing.T) {
	id := uuid.NewString()
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := message(t, outbox.PayloadEnvelope{
		Version:    1,
		EventID:    id,
		OccurredAt: occurred,
		Data:       json.RawMessage(`{"booking_number":"SY-20260301-7K2M9Q"}`),
	}, enums.EventBookingConfirmed, enums.AggregateBooking)

	env, err := decode(msg)
	require.NoError(t, err)
	assert.Equal(t, id, env.EventID)
	assert.Equal(t, enums.EventBookingConfirmed, env.EventType)
	assert.Equal(t, enums.AggregateBooking, env.AggregateType)
	assert.Equal(t, "agg-1", env.AggregateID)
	assert.Equal(t, occurred, env.OccurredAt)
	assert.JSONEq(t, `{"booking_number":"SY-20260301-7K2M9Q"}`, string(env.Payload))
}

func TestDecodeFallsBackToAttributes(t *testing.T) {
	id := uuid.NewString()
	msg := message(t, outbox.PayloadEnvelope{Data: json.RawMessage(`{}`)}, enums.EventInquiryCreated, enums.AggregateInquiry)
	msg.Attributes["event_id"] = id
	msg.Attributes["created_at"] = "2026-03-02T08:00:00Z"

	env, err := decode(msg)
	require.NoError(t, err)
	assert.Equal(t, id, env.EventID)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), env.OccurredAt)
}

func TestDecodeRejects(t *testing.T) {
	good := outbox.PayloadEnvelope{EventID: uuid.NewString(), Data: json.RawMessage(`{}`)}
	cases := map[string]*gcppubsub.Message{
		"garbage body":   {Data: []byte("not json")},
		"unknown event":  message(t, good, "order_shipped", enums.AggregateBooking),
		"bad aggregate":  message(t, good, enums.EventBookingConfirmed, "tenant"),
		"no data":        message(t, outbox.PayloadEnvelope{EventID: uuid.NewString()}, enums.EventInquiryCreated, enums.AggregateInquiry),
		"non-uuid event": message(t, outbox.PayloadEnvelope{EventID: "evt-1", Data: json.RawMessage(`{}`)}, enums.EventInquiryCreated, enums.AggregateInquiry),
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(msg)
			assert.Error(t, err)
		})
	}
}

func TestProcess(t *testing.T) {
	cases := []struct {
		name       string
		seen       bool
		guardErr   error
		handlerErr error
		want       disposition
		handled    bool
		forgotten  int
	}{
		{name: "fresh event", want: done, handled: true},
		{name: "replayed event", seen: true, want: done},
		{name: "guard down", guardErr: errors.New("redis down"), want: redeliver},
		{name: "handler fails", handlerErr: errors.New("bigquery quota"), want: redeliver, handled: true, forgotten: 1},
		{name: "unsupported event", handlerErr: fmt.Errorf("%w: x", router.ErrUnsupportedEventType), want: done, handled: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			guard := &stubGuard{seen: tc.seen, err: tc.guardErr}
			handler := &stubHandler{err: tc.handlerErr}
			svc := newService(t, handler, guard)

			msg := message(t, outbox.PayloadEnvelope{
				EventID: uuid.NewString(),
				Data:    json.RawMessage(`{"order_id":"order_ABC123"}`),
			}, enums.EventPaymentOrderCreated, enums.AggregatePaymentOrder)

			assert.Equal(t, tc.want, svc.process(context.Background(), msg))
			assert.Equal(t, tc.handled, handler.called)
			assert.Len(t, guard.forgotten, tc.forgotten)
		})
	}
}

func TestProcessMalformedSkipsGuard(t *testing.T) {
	guard := &stubGuard{}
	handler := &stubHandler{}
	svc := newService(t, handler, guard)

	assert.Equal(t, done, svc.process(context.Background(), &gcppubsub.Message{ID: "m", Data: []byte("{")}))
	assert.Empty(t, guard.checked)
	assert.False(t, handler.called)
}

func TestNewServiceValidates(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "analytics-test"})
	_, err := NewService(nil, &stubHandler{}, &stubGuard{}, logg)
	assert.Error(t, err)
	_, err = NewService(stubReceiver{}, nil, &stubGuard{}, logg)
	assert.Error(t, err)
	_, err = NewService(stubReceiver{}, &stubHandler{}, nil, logg)
	assert.Error(t, err)
	_, err = NewService(stubReceiver{}, &stubHandler{}, &stubGuard{}, nil)
	assert.Error(t, err)
}

func message(t *testing.T, body outbox.PayloadEnvelope, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return &gcppubsub.Message{
		ID:   "msg-1",
		Data: data,
		Attributes: map[string]string{
			"event_type":     string(eventType),
			"aggregate_type": string(aggregate),
			"aggregate_id":   "agg-1",
		},
	}
}

func newService(t *testing.T, handler Handler, guard *stubGuard) *Service {
	t.Helper()
	svc, err := NewService(stubReceiver{}, handler, guard, logger.New(logger.Options{ServiceName: "analytics-test"}))
	require.NoError(t, err)
	return svc
}

type stubReceiver struct{}

func (stubReceiver) Receive(context.Context, func(context.Context, *gcppubsub.Message)) error {
	return nil
}

type stubHandler struct {
	called bool
	err    error
}

func (h *stubHandler) Handle(context.Context, types.Envelope) error {
	h.called = true
	return h.err
}

type stubGuard struct {
	seen      bool
	err       error
	checked   []string
	forgotten []string
}

func (g *stubGuard) Seen(_ context.Context, id string) (bool, error) {
	g.checked = append(g.checked, id)
	return g.seen, g.err
}

func (g *stubGuard) Forget(_ context.Context, id string) error {
	g.forgotten = append(g.forgotten, id)
	return nil
}
