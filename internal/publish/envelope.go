package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MsgTypeReadings is the msg_type of every envelope sent by a [Publisher].
const MsgTypeReadings = "meter_readings"

// Reading is one sensor value as published.
//
// Value and Unit are null for a configured sensor the meter has not reported yet.
type Reading struct {
	Address   string     `json:"address"`
	Name      string     `json:"name"`
	Value     *float64   `json:"value"`
	Unit      *string    `json:"unit"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Envelope wraps one snapshot of meter readings.
type Envelope struct {
	MsgType   string    `json:"msg_type"`
	MsgID     string    `json:"msg_id"`
	Device    string    `json:"device"`
	Timestamp time.Time `json:"timestamp"`
	Readings  []Reading `json:"readings"`
}

// NewEnvelope creates an outbound envelope with a new UUID and timestamp.
func NewEnvelope(device string, readings []Reading) *Envelope {
	return &Envelope{
		MsgType:   MsgTypeReadings,
		MsgID:     uuid.New().String(),
		Device:    device,
		Timestamp: time.Now().UTC(),
		Readings:  readings,
	}
}

// Encode marshals the envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope unmarshals a readings envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.MsgType != MsgTypeReadings {
		return nil, fmt.Errorf("unknown msg_type: %s", env.MsgType)
	}
	return &env, nil
}
