package types

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

// Envelope is a domain event as the funnel consumer sees it. Routing fields
// come from the Pub/Sub attributes and Payload is the envelope's data.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
