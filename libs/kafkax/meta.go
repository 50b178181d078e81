package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	headerEventID       = "event_id"
	headerEventType     = "event_type"
	headerAggregateType = "aggregate_type"
	headerAggregateID   = "aggregate_id"
)

// EventMeta travels in message headers next to the JSON payload.
type EventMeta struct {
	EventID       string
	EventType     string
	AggregateType string
	AggregateID   string
}

// Headers renders the non-empty fields of m.
func (m EventMeta) Headers() []kafka.Header {
	headers := make([]kafka.Header, 0, 4)
	for _, kv := range [][2]string{
		{headerEventID, m.EventID},
		{headerEventType, m.EventType},
		{headerAggregateType, m.AggregateType},
		{headerAggregateID, m.AggregateID},
	} {
		if kv[1] != "" {
			headers = append(headers, kafka.Header{Key: kv[0], Value: []byte(kv[1])})
		}
	}
	return headers
}

// ExtractEventMeta reads the meta headers. Messages from producers that skip
// them fall back to the key for ids and the topic for the type.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:       HeaderValue(msg.Headers, headerEventID),
		EventType:     HeaderValue(msg.Headers, headerEventType),
		AggregateType: HeaderValue(msg.Headers, headerAggregateType),
		AggregateID:   HeaderValue(msg.Headers, headerAggregateID),
	}
	if meta.AggregateID == "" {
		meta.AggregateID = string(msg.Key)
	}
	if meta.EventID == "" {
		meta.EventID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// SplitBrokers parses a comma separated broker list, dropping blanks and
// repeats.
func SplitBrokers(raw string) []string {
	var brokers []string
	seen := make(map[string]bool)
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		brokers = append(brokers, b)
	}
	return brokers
}
