// Package tickets handles Kafka event production for ticket change
// events.
package tickets

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/vulndash/vulndash-backend/broadcast"
)

// TicketProducer sends ticket change events to Kafka.
type TicketProducer struct {
	Writer *kafka.Writer
}

// NewTicketProducer initializes a new Kafka writer for ticket events.
// The brokers string is a comma-separated address list.
func NewTicketProducer(brokers string, topic string) *TicketProducer {
	return &TicketProducer{
		Writer: &kafka.Writer{
			Addr:     kafka.TCP(strings.Split(brokers, ",")...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// PublishTicketChanges sends one delta batch to the Kafka topic. The
// batch is keyed by the first delta's owner so one organization's changes
// stay ordered within a partition.
func (p *TicketProducer) PublishTicketChanges(ctx context.Context, deltas []broadcast.TicketDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	event := TicketChangedEvent{
		EventType:     "ticket.changed",
		EventID:       uuid.New().String(),
		EventTime:     time.Now().UTC(),
		SchemaVersion: "v1",
		Deltas:        deltas,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(deltas[0].Owner),
		Value: payload,
	})
}

// Close cleans up the Kafka writer.
func (p *TicketProducer) Close() error {
	return p.Writer.Close()
}
