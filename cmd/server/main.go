// Command server wires the custody tracking service: stores, registries,
// event publishers, and the HTTP surface. Business logic lives in the
// internal service packages; main only assembles and supervises them.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"custodia/internal/audit"
	"custodia/internal/events"
	kafkaevents "custodia/internal/events/kafka"
	jwttoken "custodia/internal/jwt_token"
	participantmetrics "custodia/internal/participant/metrics"
	participantservice "custodia/internal/participant/service"
	participantstore "custodia/internal/participant/store"
	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/logger"
	platformmetrics "custodia/internal/platform/metrics"
	platformredis "custodia/internal/platform/redis"
	shipmentmetrics "custodia/internal/shipment/metrics"
	shipmentservice "custodia/internal/shipment/service"
	shipmentstore "custodia/internal/shipment/store"
	trackerservice "custodia/internal/tracker/service"
	trackerstore "custodia/internal/tracker/store"
	httptransport "custodia/internal/transport/http"
	id "custodia/pkg/domain"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "custodia: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	adminID := id.NewParticipantID()
	if cfg.AdminParticipant != "" {
		parsed, err := id.ParseParticipantID(cfg.AdminParticipant)
		if err != nil {
			return fmt.Errorf("invalid CUSTODIA_ADMIN_PARTICIPANT: %w", err)
		}
		adminID = parsed
	} else {
		log.Warn("no admin participant configured, generated ephemeral admin", "admin", adminID.String())
	}

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		participants participantservice.Store
		shipments    shipmentservice.Store
		auditStore   audit.Store
	)
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		if err := db.PingContext(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		defer db.Close()
		participants = participantstore.NewPostgres(db)
		shipments = shipmentstore.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		participants = participantstore.NewInMemory()
		shipments = shipmentstore.NewInMemory()
		auditStore = audit.NewInMemoryStore()
		log.Warn("no postgres configured, using in-memory stores")
	}

	var trackerIdx trackerservice.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		trackerIdx = trackerstore.NewRedis(redisClient.Client)
		log.Info("using redis tracker index")
	} else {
		trackerIdx = trackerstore.NewInMemory()
		log.Warn("no redis configured, using in-memory tracker index")
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := kafkaevents.New(context.Background(), cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kp.Close(context.Background())
		publisher = kp
		log.Info("publishing events to kafka", "topic", cfg.Kafka.Topic)
	}

	registry := participantservice.NewRegistry(participants, adminID, log,
		participantservice.WithMetrics(participantmetrics.New()),
	)
	tracker := trackerservice.New(trackerIdx, registry, log)
	auditInbox := make(chan audit.Event, 256)
	auditor := audit.NewPublisher(auditStore, audit.WithInbox(auditInbox))
	auditWorker := audit.NewWorker(auditStore, auditInbox)
	engine := shipmentservice.New(shipments, registry, tracker, auditor, log,
		shipmentservice.WithMetrics(shipmentmetrics.New()),
		shipmentservice.WithEvents(publisher),
		shipmentservice.WithTracer(otel.Tracer("custodia/shipment")),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "custodia", "custodia-api")

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Shipments:    httptransport.NewShipmentHandler(engine, log),
		Participants: httptransport.NewParticipantHandler(registry, log),
		Tracker:      httptransport.NewTrackerHandler(tracker, log),
		Validator:    jwtService,
		AdminToken:   cfg.AdminToken,
		Metrics:      platformmetrics.New(),
		Logger:       log,
	})
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting custodia", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
