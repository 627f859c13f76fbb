// Package router maps domain events onto booking funnel rows.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/stockyard-backend/internal/analytics/types"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

type Writer interface {
	InsertFunnel(ctx context.Context, row types.FunnelEventRow) error
}

// Handler consumes an envelope whose payload has already been decoded.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// route pairs the payload decoder for one event type with its handler.
type route struct {
	decode  func(json.RawMessage) (any, error)
	handler Handler
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	event := new(T)
	if err := json.Unmarshal(raw, event); err != nil {
		return nil, err
	}
	return event, nil
}

func funnelRoute[T any](w Writer, build func(*types.FunnelEventRow, *T)) route {
	return route{decode: decodeAs[T], handler: funnelHandler[T]{writer: w, build: build}}
}

type Router struct {
	routes map[enums.OutboxEventType]route
	logg   *logger.Logger
}

// NewRouter routes every funnel event to writer. overrides swap the handler
// for an event type while keeping its decoder; unknown types are ignored.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	switch {
	case writer == nil:
		return nil, errors.New("router: writer is required")
	case logg == nil:
		return nil, errors.New("router: logger is required")
	}

	routes := map[enums.OutboxEventType]route{
		enums.EventPaymentOrderCreated:  funnelRoute(writer, paymentOrderCreatedRow),
		enums.EventPaymentOrderFailed:   funnelRoute(writer, paymentOrderFailedRow),
		enums.EventBookingConfirmed:     funnelRoute(writer, bookingConfirmedRow),
		enums.EventInquiryCreated:       funnelRoute(writer, inquiryCreatedRow),
		enums.EventInquiryAllocated:     funnelRoute(writer, inquiryAllocatedRow),
		enums.EventInquiryStatusChanged: funnelRoute(writer, inquiryStatusChangedRow),
	}
	for eventType, h := range overrides {
		if r, ok := routes[eventType]; ok && h != nil {
			r.handler = h
			routes[eventType] = r
		}
	}
	return &Router{routes: routes, logg: logg}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	rt, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", envelope.EventType)
	}
	payload, err := rt.decode(envelope.Payload)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "event_id", envelope.EventID), "funnel payload does not decode")
		return fmt.Errorf("%s: decode payload: %w", envelope.EventType, err)
	}
	return rt.handler.Handle(ctx, envelope, payload)
}
