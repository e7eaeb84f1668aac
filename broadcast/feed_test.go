package broadcast

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndash/vulndash-backend/model"
)

type stubSource struct {
	tickets []model.Ticket
	err     error
	since   []time.Time
}

func (s *stubSource) ChangedTicketsSince(ctx context.Context, since time.Time) ([]model.Ticket, error) {
	s.since = append(s.since, since)
	return s.tickets, s.err
}

type recordingPublisher struct {
	events   []string
	rooms    []string
	payloads []interface{}
	err      error
}

func (p *recordingPublisher) Publish(event, room string, payload interface{}) error {
	p.events = append(p.events, event)
	p.rooms = append(p.rooms, room)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func changedTicket(key string, change time.Time) model.Ticket {
	return model.Ticket{
		Key: key, Owner: "ACME", IP: "10.0.0.1", Port: 443,
		Open: true, LastChange: change,
		Details: model.TicketDetails{Name: "OpenSSL", Severity: model.SeverityHigh},
	}
}

func TestTicketFeedQuietTickStaysSilent(t *testing.T) {
	src := &stubSource{}
	pub := &recordingPublisher{}
	feed := NewTicketFeed(src, pub, time.Now(), 0)

	require.NoError(t, feed.Tick(context.Background()))
	assert.Empty(t, pub.events)
	assert.Empty(t, feed.History(0))
}

func TestTicketFeedPublishesDeltas(t *testing.T) {
	change := time.Now().UTC()
	src := &stubSource{tickets: []model.Ticket{changedTicket("t1", change)}}
	pub := &recordingPublisher{}
	feed := NewTicketFeed(src, pub, change.Add(-time.Minute), 0)

	require.NoError(t, feed.Tick(context.Background()))

	require.Len(t, pub.events, 1)
	assert.Equal(t, FeedEvent, pub.events[0])
	assert.Equal(t, RoomDashboard, pub.rooms[0])

	deltas, ok := pub.payloads[0].([]TicketDelta)
	require.True(t, ok)
	require.Len(t, deltas, 1)
	assert.Equal(t, "t1", deltas[0].Key)
	assert.Equal(t, "ACME", deltas[0].Owner)
	assert.True(t, deltas[0].Open)
}

func TestTicketFeedWatermarkAlwaysAdvances(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	src := &stubSource{err: errors.New("query failed")}
	feed := NewTicketFeed(src, &recordingPublisher{}, start, 0)

	require.Error(t, feed.Tick(context.Background()))
	require.Error(t, feed.Tick(context.Background()))

	// The second poll starts where the first one left off even though the
	// first failed; windows never re-scan.
	require.Len(t, src.since, 2)
	assert.Equal(t, start.UTC(), src.since[0])
	assert.True(t, src.since[1].After(src.since[0]))
}

func TestTicketFeedHistoryNewestFirstAndCapped(t *testing.T) {
	src := &stubSource{}
	pub := &recordingPublisher{}
	feed := NewTicketFeed(src, pub, time.Now().Add(-time.Hour), 5)

	for i := 0; i < 4; i++ {
		src.tickets = []model.Ticket{
			changedTicket(fmt.Sprintf("t%d-a", i), time.Now()),
			changedTicket(fmt.Sprintf("t%d-b", i), time.Now()),
		}
		require.NoError(t, feed.Tick(context.Background()))
	}

	history := feed.History(0)
	require.Len(t, history, 5)
	// The latest batch leads.
	assert.Equal(t, "t3-a", history[0].Key)
	assert.Equal(t, "t3-b", history[1].Key)
	assert.Equal(t, "t2-a", history[2].Key)

	limited := feed.History(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "t3-a", limited[0].Key)
}

func TestTicketFeedMirror(t *testing.T) {
	src := &stubSource{tickets: []model.Ticket{changedTicket("t1", time.Now())}}
	feed := NewTicketFeed(src, &recordingPublisher{}, time.Now().Add(-time.Hour), 0)

	var mirrored []TicketDelta
	feed.SetMirror(func(ctx context.Context, deltas []TicketDelta) error {
		mirrored = deltas
		return nil
	})

	require.NoError(t, feed.Tick(context.Background()))
	require.Len(t, mirrored, 1)
	assert.Equal(t, "t1", mirrored[0].Key)
}

func TestTicketFeedHistoryReturnsCopy(t *testing.T) {
	src := &stubSource{tickets: []model.Ticket{changedTicket("t1", time.Now())}}
	feed := NewTicketFeed(src, &recordingPublisher{}, time.Now().Add(-time.Hour), 0)
	require.NoError(t, feed.Tick(context.Background()))

	history := feed.History(0)
	history[0].Key = "mutated"
	assert.Equal(t, "t1", feed.History(0)[0].Key)
}
