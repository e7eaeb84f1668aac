// Package bod implements the REST handlers and broadcast family for the
// remediation-directive page: the three-bucket critical-ticket curve with
// backlog burn-down, the urgent and risky-service listings, and their CSV
// downloads.
package bod

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/vulndash/vulndash-backend/broadcast"
	"github.com/vulndash/vulndash-backend/cache"
	"github.com/vulndash/vulndash-backend/metrics"
	"github.com/vulndash/vulndash-backend/util"
)

// EventChart is the curve push to the bod room.
const EventChart = "chart"

// Module bundles the directive tracking endpoints and broadcast job.
type Module struct {
	svc   *metrics.Service
	memo  *cache.Memoizer
	start time.Time
	ttl   time.Duration
	log   *zap.SugaredLogger
}

// New wires the module; start is the directive's issuance date.
func New(svc *metrics.Service, memo *cache.Memoizer, start time.Time, ttl time.Duration, log *zap.SugaredLogger) *Module {
	return &Module{svc: svc, memo: memo, start: start, ttl: ttl, log: log}
}

// Register mounts the routes on the router group.
func (m *Module) Register(r fiber.Router) {
	r.Get("/chart", m.getChart)
	r.Get("/chart/csv", m.getChartCSV)
	r.Get("/histogram", m.getHistogram)
	r.Get("/open_tickets/:category", m.getOpenTickets)
	r.Get("/open_tickets/:category/csv", m.getOpenTicketsCSV)
	r.Get("/closed_tickets/:category", m.getClosedTickets)
	r.Get("/closed_tickets/:category/csv", m.getClosedTicketsCSV)
}

// RegisterBroadcasts schedules the curve push.
func (m *Module) RegisterBroadcasts(s *broadcast.Scheduler, pub broadcast.Publisher, interval time.Duration) {
	s.Every("bod", interval, func(ctx context.Context) error {
		chart, err := m.chartJSON(ctx)
		if err != nil {
			return err
		}
		return pub.Publish(EventChart, broadcast.RoomBOD, json.RawMessage(chart))
	})
}

func listingCategory(c *fiber.Ctx) (metrics.TicketCategory, string, error) {
	switch c.Params("category") {
	case "urgent":
		return metrics.UrgentCategory(), "urgent", nil
	case "risky_services":
		return metrics.RiskyServicesCategory(), "risky_services", nil
	}
	return metrics.TicketCategory{}, "", fiber.NewError(fiber.StatusNotFound, "unknown category")
}

func (m *Module) chartJSON(ctx context.Context) ([]byte, error) {
	now := util.UTCNow()
	key, err := cache.Key("bod.chart", metrics.StartOfDay(now))
	if err != nil {
		return nil, err
	}
	return m.memo.DoTTL(ctx, key, m.ttl, func(ctx context.Context) ([]byte, error) {
		curve, err := m.svc.RemediationCurve(ctx, m.start, now)
		if err != nil {
			return nil, err
		}
		return json.Marshal(curve)
	})
}

func (m *Module) getChart(c *fiber.Ctx) error {
	payload, err := m.chartJSON(c.Context())
	return m.sendJSON(c, payload, err)
}

func (m *Module) getChartCSV(c *fiber.Ctx) error {
	now := util.UTCNow()
	curve, err := m.svc.RemediationCurve(c.Context(), m.start, now)
	if err != nil {
		m.log.Errorw("bod chart csv failed", "error", err)
		return fiber.ErrInternalServerError
	}
	body, err := curve.CSV()
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return sendCSV(c, "bod_age_chart", body, now)
}

func (m *Module) getHistogram(c *fiber.Ctx) error {
	now := util.UTCNow()
	key, err := cache.Key("bod.histogram")
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		hist, err := m.svc.OpenAgeHistogram(ctx, metrics.UrgentCategory(), 0, now)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string][]int{"age": hist})
	})
	return m.sendJSON(c, payload, err)
}

func (m *Module) getOpenTickets(c *fiber.Ctx) error {
	cat, name, err := listingCategory(c)
	if err != nil {
		return err
	}
	now := util.UTCNow()
	key, err := cache.Key("bod.open_tickets", name)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		rows, err := m.svc.OpenTickets(ctx, cat, now)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	})
	return m.sendJSON(c, payload, err)
}

func (m *Module) getOpenTicketsCSV(c *fiber.Ctx) error {
	cat, name, err := listingCategory(c)
	if err != nil {
		return err
	}
	now := util.UTCNow()
	rows, err := m.svc.OpenTickets(c.Context(), cat, now)
	if err != nil {
		m.log.Errorw("bod open tickets csv failed", "category", name, "error", err)
		return fiber.ErrInternalServerError
	}
	body, err := metrics.OpenTicketsCSV(rows, cat)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return sendCSV(c, fmt.Sprintf("bod_%s_open_tickets", name), body, now)
}

func (m *Module) getClosedTickets(c *fiber.Ctx) error {
	cat, name, err := listingCategory(c)
	if err != nil {
		return err
	}
	key, err := cache.Key("bod.closed_tickets", name)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		rows, err := m.svc.ClosedTickets(ctx, cat, m.start)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	})
	return m.sendJSON(c, payload, err)
}

func (m *Module) getClosedTicketsCSV(c *fiber.Ctx) error {
	cat, name, err := listingCategory(c)
	if err != nil {
		return err
	}
	rows, err := m.svc.ClosedTickets(c.Context(), cat, m.start)
	if err != nil {
		m.log.Errorw("bod closed tickets csv failed", "category", name, "error", err)
		return fiber.ErrInternalServerError
	}
	body, err := metrics.ClosedTicketsCSV(rows, cat)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return sendCSV(c, fmt.Sprintf("bod_%s_closed_tickets", name), body, util.UTCNow())
}

func (m *Module) sendJSON(c *fiber.Ctx, payload []byte, err error) error {
	if err != nil {
		m.log.Errorw("bod payload failed", "path", c.Path(), "error", err)
		return fiber.ErrInternalServerError
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(payload)
}

func sendCSV(c *fiber.Ctx, name string, body []byte, now time.Time) error {
	filename := fmt.Sprintf("%s_%s.csv", name, now.Format("2006-01-02"))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Set(fiber.HeaderContentType, "text/csv")
	return c.Send(body)
}
