package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-clothing-orders/internal/events"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType = "event_type"
	HeaderTraceID   = "trace_id"
)

// Encode builds the broker message for one envelope. Event type and trace id
// are copied into headers so consumers can route without decoding.
func Encode(topic string, key []byte, env events.Envelope) (kafka.Message, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s envelope: %w", env.EventType, err)
	}
	headers := []kafka.Header{{Key: HeaderEventType, Value: []byte(env.EventType)}}
	if env.TraceID != "" {
		headers = append(headers, kafka.Header{Key: HeaderTraceID, Value: []byte(env.TraceID)})
	}
	return kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   b,
		Time:    time.Now(),
		Headers: headers,
	}, nil
}

func DecodeEnvelope(m kafka.Message) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, fmt.Errorf("decode envelope at %s/%d/%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	if env.EventID == "" || env.EventType == "" {
		return env, fmt.Errorf("envelope at %s/%d/%d: missing event id or type", m.Topic, m.Partition, m.Offset)
	}
	return env, nil
}

func Header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
