// Package broadcast pushes dashboard payloads to connected clients on a
// fixed cadence and streams ticket-change deltas between full refreshes.
package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/wagoodman/go-partybus"
)

// Rooms group clients by the dashboard page they watch; each broadcast
// family publishes only to its own room.
const (
	RoomDashboard = "dashboard"
	RoomCybex     = "cybex"
	RoomBOD       = "bod"
)

// Publisher delivers one named payload to a room. Implementations fan the
// payload out to whatever transport the clients use.
type Publisher interface {
	Publish(event string, room string, payload interface{}) error
}

// BusPublisher publishes onto an in-process event bus. The websocket layer
// and any other delivery transport subscribe to the bus rather than being
// called by the broadcast loop directly.
type BusPublisher struct {
	bus *partybus.Bus
}

// NewBusPublisher wraps a bus.
func NewBusPublisher(bus *partybus.Bus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

// Publish wraps the payload in the {"data": ...} envelope every client
// expects and emits it as a bus event typed by event name, with the room
// as the source.
func (p *BusPublisher) Publish(event string, room string, payload interface{}) error {
	body, err := json.Marshal(map[string]interface{}{"data": payload})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, room, err)
	}
	p.bus.Publish(partybus.Event{
		Type:   partybus.EventType(event),
		Source: room,
		Value:  body,
	})
	return nil
}
