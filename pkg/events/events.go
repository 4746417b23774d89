// Package events pushes engine activity to connected dashboards over
// websockets. Delivery is best-effort: events are not persisted and a
// client that connects late or falls behind misses them. The
// recommendation store remains the source of truth.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the engine.
const (
	TypeNewRecommendation    = "new_recommendation"
	TypeOptimizationExecuted = "optimization_executed"
)

// Event is the wire envelope for one broadcast message.
type Event struct {
	Type      string      `json:"type"`
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Publisher is the write side the engine components depend on. The Hub
// implements it; tests substitute a recorder.
type Publisher interface {
	Publish(eventType string, data interface{})
}

// NopPublisher discards every event. One-shot commands that have no
// connected dashboards use it.
type NopPublisher struct{}

func (NopPublisher) Publish(eventType string, data interface{}) {}

func newEvent(eventType string, data interface{}) Event {
	return Event{
		Type:      eventType,
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
