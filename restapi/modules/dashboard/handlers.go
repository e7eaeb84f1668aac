// Package dashboard implements the REST handlers and broadcast family for
// the main dashboard page: the per-organization severity board, headline
// metrics, scanner queues, scan history, first-seen findings, activity
// stats, and the recent-change feed.
package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/vulndash/vulndash-backend/broadcast"
	"github.com/vulndash/vulndash-backend/cache"
	"github.com/vulndash/vulndash-backend/metrics"
	"github.com/vulndash/vulndash-backend/util"
)

// Event names published to the dashboard room.
const (
	EventSeverityCounts = "severity_counts"
	EventSummary        = "summary"
)

// Module bundles the dashboard endpoints and their broadcast job.
type Module struct {
	svc  *metrics.Service
	memo *cache.Memoizer
	feed *broadcast.TicketFeed
	ttl  time.Duration
	log  *zap.SugaredLogger
}

// New wires the dashboard module.
func New(svc *metrics.Service, memo *cache.Memoizer, feed *broadcast.TicketFeed, ttl time.Duration, log *zap.SugaredLogger) *Module {
	return &Module{svc: svc, memo: memo, feed: feed, ttl: ttl, log: log}
}

// Register mounts the dashboard routes on the router group.
func (m *Module) Register(r fiber.Router) {
	r.Get("/severity_counts", m.getSeverityCounts)
	r.Get("/summary", m.getSummary)
	r.Get("/queues", m.getQueues)
	r.Get("/history", m.getHistory)
	r.Get("/firstseen", m.getFirstSeen)
	r.Get("/activity", m.getActivity)
	r.Get("/ticket_feed", m.getTicketFeed)
}

// RegisterBroadcasts schedules the dashboard refresh: the severity board
// and the headline metrics push together on one cadence.
func (m *Module) RegisterBroadcasts(s *broadcast.Scheduler, pub broadcast.Publisher, interval time.Duration) {
	s.Every("dashboard", interval, func(ctx context.Context) error {
		counts, err := m.severityCountsJSON(ctx)
		if err != nil {
			return err
		}
		if err := pub.Publish(EventSeverityCounts, broadcast.RoomDashboard, json.RawMessage(counts)); err != nil {
			return err
		}
		summary, err := m.summaryJSON(ctx)
		if err != nil {
			return err
		}
		return pub.Publish(EventSummary, broadcast.RoomDashboard, json.RawMessage(summary))
	})
}

func (m *Module) severityCountsJSON(ctx context.Context) ([]byte, error) {
	key, err := cache.Key("dashboard.severity_counts")
	if err != nil {
		return nil, err
	}
	return m.memo.DoTTL(ctx, key, m.ttl, func(ctx context.Context) ([]byte, error) {
		rows, err := m.svc.TicketSeverityCounts(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	})
}

func (m *Module) summaryJSON(ctx context.Context) ([]byte, error) {
	key, err := cache.Key("dashboard.summary")
	if err != nil {
		return nil, err
	}
	return m.memo.DoTTL(ctx, key, m.ttl, func(ctx context.Context) ([]byte, error) {
		sum, err := m.svc.OverallMetrics(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sum)
	})
}

func (m *Module) getSeverityCounts(c *fiber.Ctx) error {
	payload, err := m.severityCountsJSON(c.Context())
	return sendCachedJSON(c, m.log, payload, err)
}

func (m *Module) getSummary(c *fiber.Ctx) error {
	payload, err := m.summaryJSON(c.Context())
	return sendCachedJSON(c, m.log, payload, err)
}

func (m *Module) getQueues(c *fiber.Ctx) error {
	counts, err := m.svc.QueueDepths(c.Context())
	if err != nil {
		m.log.Errorw("queue depths failed", "error", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(counts)
}

func (m *Module) getHistory(c *fiber.Ctx) error {
	windows, err := m.svc.ScanWindows(c.Context())
	if err != nil {
		m.log.Errorw("scan windows failed", "error", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(windows)
}

func (m *Module) getFirstSeen(c *fiber.Ctx) error {
	key, err := cache.Key("dashboard.firstseen")
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		counts, err := m.svc.FirstSeen(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(counts)
	})
	return sendCachedJSON(c, m.log, payload, err)
}

func (m *Module) getActivity(c *fiber.Ctx) error {
	now := util.UTCNow()
	key, err := cache.Key("dashboard.activity", metrics.StartOfDay(now))
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		stats, err := m.svc.ActivityStats(ctx, now)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stats)
	})
	return sendCachedJSON(c, m.log, payload, err)
}

func (m *Module) getTicketFeed(c *fiber.Ctx) error {
	n := c.QueryInt("count", 0)
	return c.JSON(m.feed.History(n))
}

// sendCachedJSON sends a pre-serialized payload or a 500 on renderer
// failure.
func sendCachedJSON(c *fiber.Ctx, log *zap.SugaredLogger, payload []byte, err error) error {
	if err != nil {
		log.Errorw("dashboard payload failed", "path", c.Path(), "error", err)
		return fiber.ErrInternalServerError
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(payload)
}
