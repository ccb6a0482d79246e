package domain

import "time"

// DefaultTopic is used when a message or flush carries no explicit topic.
const DefaultTopic = "general"

// CachedMessage is a chat message living in the room cache only.
// It is not durable until the flush pipeline has written it to the
// conversation store; ordering is append order, there is no id.
type CachedMessage struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver,omitempty"`
	Text     string `json:"text"`
	Topic    string `json:"topic"`
	Ts       string `json:"ts"`
}

// StoredMessage is the durable shape persisted inside a conversation
// record's message list.
type StoredMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// ReportAggregate is the running sentiment aggregate of a relationship
// report after an accepted update.
type ReportAggregate struct {
	HoroscopeScore *float64
	SentimentSum   float64
	SentimentCount int
	SentimentAvg   *float64
	LastSentiment  *time.Time
}

// Now returns the wall-clock timestamp in the wire format shared by
// cache entries and stage notifications.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
