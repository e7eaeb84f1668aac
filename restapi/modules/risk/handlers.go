// Package risk implements the REST handlers for the risk ranking board
// and the election-infrastructure cohort views.
package risk

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/vulndash/vulndash-backend/cache"
	"github.com/vulndash/vulndash-backend/metrics"
	"github.com/vulndash/vulndash-backend/model"
)

// Module bundles the risk ranking endpoints.
type Module struct {
	svc  *metrics.Service
	memo *cache.Memoizer
	ttl  time.Duration
	log  *zap.SugaredLogger
}

// New wires the module.
func New(svc *metrics.Service, memo *cache.Memoizer, ttl time.Duration, log *zap.SugaredLogger) *Module {
	return &Module{svc: svc, memo: memo, ttl: ttl, log: log}
}

// Register mounts the routes on the router group.
func (m *Module) Register(r fiber.Router) {
	r.Get("/rankings", m.getRankings)
	r.Get("/election/summary", m.getElectionSummary)
	r.Get("/election/severity_counts", m.getElectionSeverityCounts)
}

func (m *Module) getRankings(c *fiber.Ctx) error {
	key, err := cache.Key("risk.rankings")
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		rankings, err := m.svc.RiskRankings(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rankings)
	})
	return m.sendJSON(c, payload, err)
}

func (m *Module) getElectionSummary(c *fiber.Ctx) error {
	key, err := cache.Key("risk.election.summary")
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		sum, err := m.svc.CohortMetrics(ctx, model.OrgRootElection)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sum)
	})
	return m.sendJSON(c, payload, err)
}

func (m *Module) getElectionSeverityCounts(c *fiber.Ctx) error {
	key, err := cache.Key("risk.election.severity_counts")
	if err != nil {
		return fiber.ErrInternalServerError
	}
	payload, err := m.memo.DoTTL(c.Context(), key, m.ttl, func(ctx context.Context) ([]byte, error) {
		rows, err := m.svc.CohortSeverityCounts(ctx, model.OrgRootElection)
		if err != nil {
			return nil, err
		}
		return json.Marshal(rows)
	})
	return m.sendJSON(c, payload, err)
}

func (m *Module) sendJSON(c *fiber.Ctx, payload []byte, err error) error {
	if err != nil {
		m.log.Errorw("risk payload failed", "path", c.Path(), "error", err)
		return fiber.ErrInternalServerError
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(payload)
}
