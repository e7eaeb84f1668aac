// Package tickets defines types for Kafka event production of ticket
// change events.
package tickets

import (
	"time"

	"github.com/vulndash/vulndash-backend/broadcast"
)

// TicketChangedEvent represents one batch of observed ticket changes
// published to Kafka for downstream consumers (data pushers, SIEM
// integrations).
type TicketChangedEvent struct {
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EventTime     time.Time `json:"event_time"`
	SchemaVersion string    `json:"schema_version"`

	Deltas []broadcast.TicketDelta `json:"deltas"`
}
