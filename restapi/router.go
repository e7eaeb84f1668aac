// Package restapi provides the main router and initialization for REST
// API endpoints.
package restapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/vulndash/vulndash-backend/broadcast"
	"github.com/vulndash/vulndash-backend/cache"
	"github.com/vulndash/vulndash-backend/config"
	"github.com/vulndash/vulndash-backend/metrics"
	"github.com/vulndash/vulndash-backend/restapi/modules/bod"
	"github.com/vulndash/vulndash-backend/restapi/modules/cybex"
	"github.com/vulndash/vulndash-backend/restapi/modules/dashboard"
	"github.com/vulndash/vulndash-backend/restapi/modules/risk"
)

// Deps carries everything the route modules need.
type Deps struct {
	Svc    *metrics.Service
	Memo   *cache.Memoizer
	Feed   *broadcast.TicketFeed
	Cfg    *config.Config
	Log    *zap.SugaredLogger
	Schema graphql.Schema
}

// SetupRoutes configures all REST API routes and the GraphQL endpoint,
// and registers each page's broadcast job on the scheduler.
func SetupRoutes(app *fiber.App, sched *broadcast.Scheduler, pub broadcast.Publisher, deps Deps) {
	// API Group /api/v1
	api := app.Group("/api/v1")

	// GraphQL route, mounted within the api group to inherit path prefixes
	api.Post("/graphql", GraphQLHandler(deps.Schema))

	dash := dashboard.New(deps.Svc, deps.Memo, deps.Feed, deps.Cfg.CacheTTL, deps.Log)
	dash.Register(api.Group("/dashboard"))
	dash.RegisterBroadcasts(sched, pub, deps.Cfg.DashboardInterval)

	cyb := cybex.New(deps.Svc, deps.Memo, deps.Cfg.CybexStartDate, cadenceTTL(deps.Cfg.CybexInterval), deps.Log)
	cyb.Register(api.Group("/cybex"))
	cyb.RegisterBroadcasts(sched, pub, deps.Cfg.CybexInterval)

	directive := bod.New(deps.Svc, deps.Memo, deps.Cfg.BODStartDate, cadenceTTL(deps.Cfg.BODInterval), deps.Log)
	directive.Register(api.Group("/bod"))
	directive.RegisterBroadcasts(sched, pub, deps.Cfg.BODInterval)

	risky := risk.New(deps.Svc, deps.Memo, deps.Cfg.CacheTTL, deps.Log)
	risky.Register(api.Group("/risk"))

	deps.Log.Infof("API routes initialized successfully")
}

// cadenceTTL keeps cached payloads fresh for one broadcast cycle, minus a
// second so the next cycle always recomputes.
func cadenceTTL(interval time.Duration) time.Duration {
	if interval <= time.Second {
		return interval
	}
	return interval - time.Second
}
