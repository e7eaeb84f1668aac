// Package main provides the entry point for the vulndash-backend
// microservice: the posture dashboard's aggregation, caching, broadcast,
// and HTTP/GraphQL layers over the scan data store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wagoodman/go-partybus"

	"github.com/vulndash/vulndash-backend/broadcast"
	"github.com/vulndash/vulndash-backend/cache"
	"github.com/vulndash/vulndash-backend/config"
	"github.com/vulndash/vulndash-backend/database"
	"github.com/vulndash/vulndash-backend/events/modules/tickets"
	gqlschema "github.com/vulndash/vulndash-backend/graphql"
	"github.com/vulndash/vulndash-backend/internal/api"
	"github.com/vulndash/vulndash-backend/metrics"
	"github.com/vulndash/vulndash-backend/restapi"
	"github.com/vulndash/vulndash-backend/store"
	"github.com/vulndash/vulndash-backend/util"
)

func main() {
	log := database.Logger().Sugar()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if len(cfg.RiskyServices) > 0 {
		metrics.RiskyServicesMap = cfg.RiskyServices
	}

	// Storage and aggregation core
	db := database.InitializeDatabase()
	st := store.NewTicketStore(db)
	svc := metrics.NewService(st)

	memo := cache.New(cfg.CacheTTL)
	defer memo.Close()

	// Broadcast plumbing: every family publishes onto the bus, delivery
	// transports subscribe to it.
	bus := partybus.NewBus()
	pub := broadcast.NewBusPublisher(bus)
	sched := broadcast.NewScheduler(log, cfg.JobTimeout)

	feed := broadcast.NewTicketFeed(st, pub, util.UTCNow(), broadcast.FeedHistoryCapacity)
	if cfg.KafkaBrokers != "" {
		producer := tickets.NewTicketProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		feed.SetMirror(producer.PublishTicketChanges)
		log.Infof("Ticket event mirroring enabled on topic %s", cfg.KafkaTopic)
	}
	sched.Every("ticket_feed", cfg.FeedInterval, feed.Tick)

	// GraphQL schema over the aggregation service
	schema, err := gqlschema.CreateSchema(svc)
	if err != nil {
		log.Fatalf("Failed to create GraphQL schema: %v", err)
	}

	// HTTP surface; route setup also registers the broadcast jobs.
	app := api.NewFiberApp(sched, pub, restapi.Deps{
		Svc:    svc,
		Memo:   memo,
		Feed:   feed,
		Cfg:    cfg,
		Log:    log,
		Schema: schema,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sched.Run(ctx)

	go func() {
		<-ctx.Done()
		log.Infof("Shutting down")
		_ = app.Shutdown()
	}()

	port := util.GetEnvDefault("MS_PORT", "3000")
	log.Infof("Starting server on port %s", port)
	log.Infof("GraphQL endpoint available at /api/v1/graphql")
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
