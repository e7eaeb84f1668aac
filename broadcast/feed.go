package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/vulndash/vulndash-backend/model"
)

// Feed defaults.
const (
	FeedHistoryCapacity = 100
	FeedInterval        = 5 * time.Minute
	FeedEvent           = "ticket_activity"
)

// TicketDelta is one observed ticket change, as pushed to clients.
type TicketDelta struct {
	Key        string         `json:"_id"`
	Owner      string         `json:"owner"`
	IP         string         `json:"ip"`
	Port       int            `json:"port"`
	Name       string         `json:"name,omitempty"`
	Severity   model.Severity `json:"severity"`
	Open       bool           `json:"open"`
	LastChange time.Time      `json:"last_change"`
}

// ChangeSource yields tickets whose last_change is past a watermark.
type ChangeSource interface {
	ChangedTicketsSince(ctx context.Context, since time.Time) ([]model.Ticket, error)
}

// TicketFeed polls for ticket changes and pushes them to the dashboard
// room, keeping a bounded history so newly connecting clients can
// backfill recent activity.
type TicketFeed struct {
	source   ChangeSource
	pub      Publisher
	capacity int

	mu        sync.Mutex
	watermark time.Time
	history   []TicketDelta
	mirror    func(ctx context.Context, deltas []TicketDelta) error
}

// NewTicketFeed starts the feed's watermark at now, so only changes after
// startup are ever pushed. Zero capacity means FeedHistoryCapacity.
func NewTicketFeed(source ChangeSource, pub Publisher, now time.Time, capacity int) *TicketFeed {
	if capacity <= 0 {
		capacity = FeedHistoryCapacity
	}
	return &TicketFeed{
		source:    source,
		pub:       pub,
		capacity:  capacity,
		watermark: now.UTC(),
	}
}

// Tick polls once. The watermark advances to now whether or not anything
// changed; a poll that finds nothing must not cause the next poll to
// re-scan the same window. Deltas publish newest first and only when
// present, so quiet ticks stay silent on the wire.
func (f *TicketFeed) Tick(ctx context.Context) error {
	now := time.Now().UTC()

	f.mu.Lock()
	since := f.watermark
	f.watermark = now
	f.mu.Unlock()

	tickets, err := f.source.ChangedTicketsSince(ctx, since)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		return nil
	}

	deltas := make([]TicketDelta, 0, len(tickets))
	for i := range tickets {
		t := &tickets[i]
		deltas = append(deltas, TicketDelta{
			Key:        t.Key,
			Owner:      t.Owner,
			IP:         t.IP,
			Port:       t.Port,
			Name:       t.Details.Name,
			Severity:   t.Details.Severity,
			Open:       t.Open,
			LastChange: t.LastChange.UTC(),
		})
	}

	f.mu.Lock()
	f.history = append(deltas, f.history...)
	if len(f.history) > f.capacity {
		f.history = f.history[:f.capacity]
	}
	f.mu.Unlock()

	if err := f.pub.Publish(FeedEvent, RoomDashboard, deltas); err != nil {
		return err
	}
	if f.mirror != nil {
		return f.mirror(ctx, deltas)
	}
	return nil
}

// SetMirror installs an additional sink for delta batches, e.g. a Kafka
// producer. Set before the scheduler starts.
func (f *TicketFeed) SetMirror(fn func(ctx context.Context, deltas []TicketDelta) error) {
	f.mirror = fn
}

// History returns up to n recent deltas, newest first. n <= 0 means all
// retained.
func (f *TicketFeed) History(n int) []TicketDelta {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || n > len(f.history) {
		n = len(f.history)
	}
	out := make([]TicketDelta, n)
	copy(out, f.history[:n])
	return out
}
