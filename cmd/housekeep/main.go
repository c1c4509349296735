package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"venueflow/internal/housekeeping"
	"venueflow/internal/metrics"
	"venueflow/internal/notify"
	"venueflow/internal/store/pgstore"
	"venueflow/pkg/config"
	"venueflow/pkg/db"
)

// housekeep is meant to be run from cron. Both passes are idempotent.
func main() {
	cfg := config.Load()

	var (
		releaseEnded = flag.Bool("release-ended", true, "release bookings of events whose end time has passed")
		cleanup      = flag.Bool("cleanup-provisional", true, "cancel stale provisional bookings")
		ttl          = flag.Duration("provisional-ttl", cfg.Housekeeping.ProvisionalTTL, "age after which provisional bookings expire")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	m := metrics.New(prometheus.NewRegistry())
	st := pgstore.New(pool, cfg.DB.TxMaxRetries, m.TxRetry)
	notifiers := notify.Multi{notify.LogNotifier{}}
	if cfg.Notify.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.AMQPExchange)
		if err != nil {
			fmt.Fprintf(os.Stderr, "amqp: %v\n", err)
			os.Exit(1)
		}
		defer pub.Close()
		notifiers = append(notifiers, pub)
	}
	svc := housekeeping.NewService(st, notify.NewDispatcher(notifiers, m), m)

	now := time.Now()
	failed := false

	if *releaseEnded {
		ids, err := svc.ReleaseEnded(ctx, now)
		fmt.Printf("released %d ended events\n", len(ids))
		if err != nil {
			fmt.Fprintf(os.Stderr, "release ended: %v\n", err)
			failed = true
		}
	}
	if *cleanup {
		released, err := svc.CleanupStaleProvisionalBookings(ctx, now.Add(-*ttl))
		if err != nil {
			fmt.Fprintf(os.Stderr, "cleanup provisional: %v\n", err)
			failed = true
		} else {
			fmt.Printf("expired %d provisional bookings (%d venue, %d resource)\n", released.Total(), released.Venues, released.Resources)
		}
	}

	if failed {
		os.Exit(1)
	}
}
