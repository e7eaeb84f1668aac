// Package cybex implements the REST handlers and broadcast family for
// the federal executive tracking page: critical/high open-age curves,
// age histograms, ticket listings with CSV downloads, and the cohort
// summary.
package cybex

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
	"github.com/vulndash/vulndash-backend/model"
	"github.com/vulndash/vulndash-backend/util"
)

// Event names published to the cybex room.
const (
	EventChart     = "chart"
	EventHistogram = "histogram"
)

// Module bundles the executive tracking endpoints and broadcast jobs.
type Module struct {
	svc   *metrics.Service
	memo  *cache.Memoizer
	start time.Time
	ttl   time.Duration
	log   *zap.SugaredLogger
}

// New wires the module; start anchors every curve.
func New(svc *metrics.Service, memo *cache.Memoizer, start time.Time, ttl time.Duration, log *zap.SugaredLogger) *Module {
	return &Module{svc: svc, memo: memo, start: start, ttl: ttl, log: log}
}

// Register mounts the routes on the router group.
func (m *Module) Register(r fiber.Router) {
	r.Get("/chart/:severity", m.getChart)
	r.Get("/chart/:severity/csv", m.getChartCSV)
	r.Get("/histogram/:severity", m.getHistogram)
	r.Get("/open_tickets/:severity", m.getOpenTickets)
	r.Get("/open_tickets/:severity/csv", m.getOpenTicketsCSV)
	r.Get("/closed_tickets/:severity", m.getClosedTickets)
	r.Get("/closed_tickets/:severity/csv", m.getClosedTicketsCSV)
	r.Get("/summary", m.getSummary)
	r.Get("/severity_counts", m.getSeverityCounts)
}

// RegisterBroadcasts schedules the chart-and-histogram push for both
// tracked severities.
func (m *Module) RegisterBroadcasts(s *broadcast.Scheduler, pub broadcast.Publisher, interval time.Duration) {
	s.Every("cybex", interval, func(ctx context.Context) error {
		for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityHigh} {
			chart, err := m.chartJSON(ctx, sev)
			if err != nil {
				return err
			}
			event := fmt.Sprintf("%s_%s", EventChart, sev)
			if err := pub.Publish(event, broadcast.RoomCybex, json.RawMessage(chart)); err != nil {
				return err
			}
			hist, err := m.histogramJSON(ctx, sev)
			if err != nil {
				return err
			}
			event = fmt.Sprintf("%s_%s", EventHistogram, sev)
			if err := pub.Publish(event, broadcast.RoomCybex, json.RawMessage(hist)); err != nil {
				return err
			}
		}
		return nil
	})
}

// trackedSeverity parses the :severity path segment; only critical and
// high are tracked on this page.
func trackedSeverity(c *fiber.Ctx) (model.Severity, error) {
	switch c.Params("severity") {
	case "critical":
		return model.SeverityCritical, nil
	case "high":
		return model.SeverityHigh, nil
	}
	return 0, fiber.NewError(fiber.StatusNotFound, "unknown severity")
}

func histogramCutoff(sev model.Severity) int {
	if sev == model.SeverityCritical {
		return metrics.CriticalAgeHistCutoff
	}
	return metrics.HighAgeHistCutoff
}

func (m *Module) chartJSON(ctx context.Context, sev model.Severity) ([]byte, error) {
	now := util.UTCNow()
	key, err := cache.Key("cybex.chart", sev.String(), metrics.StartOfDay(now))
	if err != nil {
		return nil, err
	}
	return m.memo.DoTTL(ctx, key, m.ttl, func(ctx context.Context) ([]byte, error) {
		curve, err := m.svc.SeverityAgeCurve(ctx, sev, m.start, now)
		if err != nil {
			return nil, err
		}
		return json.Marshal(curve)
	})
}

func (m *Module) histogramJSON(ctx context.Context, sev model.Severity) ([]byte, error) {
	now := util.UTCNow()
	key, err := cache.Key("cybex.histogram", sev.String())
	if err != nil {
		return nil, err
	}
	return m.memo.DoTTL(ctx, key, m.ttl, func(ctx context.Context) ([]byte, error) {
		hist, err := m.svc.OpenAgeHistogram(ctx, metrics.SeverityCategory(sev), histogramCutoff(sev), now)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string][]int{"age": hist})
	})
}

func (m *Module) getChart(c *fiber.Ctx) error {
	sev, err := trackedSeverity(c)
	if err != nil {
		return err
	}
	payload, err := m.chartJSON(c.Context(), sev)
	return m.sendJSON(c, payload, err)
}

func (m *Module) getChartCSV(c *fiber.Ctx) error {
	sev, err := trackedSeverity(c)
	if err != nil {
		return err
	}
	now := util.UTCNow()
	curve, err := m.svc.SeverityAgeCurve(c.Context(), sev, m.start, now)
	if err != nil {
		m.log.Errorw("cybex chart csv failed", "severity", sev.String(), "error", err)
		return fiber.ErrInternalServerError
	}
	body, err := curve.CSV()
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return sendCSV(c, fmt.Sprintf("cybex_%s_age_chart", sev), body, now)
}

func (m *Module) getHistogram(c *fiber.Ctx) error {
	sev, err := trackedSeverity(c)
	if err != nil {
		return err
	}
	payload, err := m.histogramJSON(c.Context(), sev)
	return m.sendJSON(c, payload, err)
}

func (m *Module) getOpenTickets(c *fiber.Ctx) error {
	sev, err := trackedSeverity(c)
	if err != nil {
		return err
	}
	now := util.UTCNow()
	key, err := cache.Key("cybex.open_tickets", sev.String())
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		rows, err := m.svc.OpenTickets(ctx, metrics.SeverityCategory(sev), now)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	})
	return m.sendJSON(c, payload, err)
}

func (m *Module) getOpenTicketsCSV(c *fiber.Ctx) error {
	sev, err := trackedSeverity(c)
	if err != nil {
		return err
	}
	now := util.UTCNow()
	cat := metrics.SeverityCategory(sev)
	rows, err := m.svc.OpenTickets(c.Context(), cat, now)
	if err != nil {
		m.log.Errorw("cybex open tickets csv failed", "severity", sev.String(), "error", err)
		return fiber.ErrInternalServerError
	}
	body, err := metrics.OpenTicketsCSV(rows, cat)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return sendCSV(c, fmt.Sprintf("cybex_%s_open_tickets", sev), body, now)
}

func (m *Module) getClosedTickets(c *fiber.Ctx) error {
	sev, err := trackedSeverity(c)
	if err != nil {
		return err
	}
	key, err := cache.Key("cybex.closed_tickets", sev.String())
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		rows, err := m.svc.ClosedTickets(ctx, metrics.SeverityCategory(sev), m.start)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	})
	return m.sendJSON(c, payload, err)
}

func (m *Module) getClosedTicketsCSV(c *fiber.Ctx) error {
	sev, err := trackedSeverity(c)
	if err != nil {
		return err
	}
	cat := metrics.SeverityCategory(sev)
	rows, err := m.svc.ClosedTickets(c.Context(), cat, m.start)
	if err != nil {
		m.log.Errorw("cybex closed tickets csv failed", "severity", sev.String(), "error", err)
		return fiber.ErrInternalServerError
	}
	body, err := metrics.ClosedTicketsCSV(rows, cat)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return sendCSV(c, fmt.Sprintf("cybex_%s_closed_tickets", sev), body, util.UTCNow())
}

func (m *Module) getSummary(c *fiber.Ctx) error {
	key, err := cache.Key("cybex.summary")
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		sum, err := m.svc.CohortMetrics(ctx, model.OrgRootExecutive)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sum)
	})
	return m.sendJSON(c, payload, err)
}

func (m *Module) getSeverityCounts(c *fiber.Ctx) error {
	key, err := cache.Key("cybex.severity_counts")
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		rows, err := m.svc.CohortSeverityCounts(ctx, model.OrgRootExecutive)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	})
	return m.sendJSON(c, payload, err)
}

func (m *Module) sendJSON(c *fiber.Ctx, payload []byte, err error) error {
	if err != nil {
		m.log.Errorw("cybex payload failed", "path", c.Path(), "error", err)
		return fiber.ErrInternalServerError
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(payload)
}

// sendCSV attaches the body as a dated download. An empty listing sends
// an empty body, no header row.
func sendCSV(c *fiber.Ctx, name string, body []byte, now time.Time) error {
	filename := fmt.Sprintf("%s_%s.csv", name, now.Format("2006-01-02"))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Set(fiber.HeaderContentType, "text/csv")
	return c.Send(body)
}
