package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EnvelopeVersion is stamped on events that do not set their own.
const EnvelopeVersion = 1

// ErrEmptyData is returned by ParseEnvelope when the envelope has no payload.
var ErrEmptyData = errors.New("envelope data is empty")

// ActorRef names the staff member behind an event. Public flows leave it nil.
type ActorRef struct {
	StaffID string `json:"staffId"`
	Role    string `json:"role,omitempty"`
}

// PayloadEnvelope is stored in outbox_events.payload and published verbatim
// as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ParseEnvelope decodes raw and rejects envelopes whose data is missing or null.
func ParseEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, ErrEmptyData
	}
	return env, nil
}

// DecodeData unmarshals the envelope's data into dst.
func (e PayloadEnvelope) DecodeData(dst any) error {
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("decode envelope data: %w", err)
	}
	return nil
}
