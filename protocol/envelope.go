package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every event the controller publishes.
type Envelope struct {
	Version   int             `json:"v"`
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Station   string          `json:"station"`
	Timestamp time.Time       `json:"ts"`
	ExpiresAt time.Time       `json:"exp"`
	Payload   json.RawMessage `json:"p"`
}

// RawHeader is the minimal decode for routing decisions before full payload decode.
type RawHeader struct {
	Version   int       `json:"v"`
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"exp"`
}

// NewEnvelope creates an outbound envelope with the default TTL for its type.
func NewEnvelope(eventType, station string, payload any) (*Envelope, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Envelope{
		Version:   Version,
		Type:      eventType,
		ID:        uuid.New().String(),
		Station:   station,
		Timestamp: now,
		ExpiresAt: now.Add(DefaultTTLFor(eventType)),
		Payload:   p,
	}, nil
}

// Encode marshals the envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodePayload unmarshals the raw payload into the given target.
func (e *Envelope) DecodePayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}
