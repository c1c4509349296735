package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"venueflow/internal/allocation"
	"venueflow/internal/approval"
	"venueflow/internal/housekeeping"
	"venueflow/internal/httpapi"
	"venueflow/internal/metrics"
	"venueflow/internal/notify"
	"venueflow/internal/store/pgstore"
	"venueflow/pkg/config"
	"venueflow/pkg/db"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer conn.Close()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	st := pgstore.New(conn, cfg.DB.TxMaxRetries, m.TxRetry)

	notifiers := notify.Multi{notify.LogNotifier{}}
	if cfg.Notify.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.AMQPExchange)
		if err != nil {
			log.Fatalf("amqp: %v", err)
		}
		defer pub.Close()
		notifiers = append(notifiers, pub)
	}
	var inbox *notify.Inbox
	if cfg.Notify.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Notify.RedisURL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		inbox = notify.NewInbox(rdb, cfg.Notify.InboxLimit, cfg.Notify.InboxTTL)
		notifiers = append(notifiers, inbox)
	}
	dispatcher := notify.NewDispatcher(notifiers, m)

	engine := allocation.NewEngine(st, m)

	router := httpapi.NewRouter(httpapi.Dependencies{
		Cfg:          cfg,
		Approvals:    approval.NewService(st, engine, dispatcher, m),
		Engine:       engine,
		Housekeeping: housekeeping.NewService(st, dispatcher, m),
		Inbox:        inbox,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
}
