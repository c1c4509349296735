//go:build integration

package pgstore_test

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venueflow/internal/allocation"
	"venueflow/internal/booking"
	"venueflow/internal/event"
	"venueflow/internal/resource"
	"venueflow/internal/store"
	"venueflow/internal/store/pgstore"
	"venueflow/internal/user"
	"venueflow/internal/venue"
	"venueflow/pkg/config"
	"venueflow/pkg/db"
)

var testPool *pgxpool.Pool

// TEST_DATABASE_URL must point at a disposable database; every table is
// truncated between tests.
func TestMain(m *testing.M) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		log.Println("TEST_DATABASE_URL not set; skipping pgstore integration tests")
		os.Exit(0)
	}

	cfg := config.Config{DatabaseURL: url, DirectURL: url}
	if err := db.Migrate("file://../../../migrations", cfg); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := db.Open(context.Background(), cfg)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	testPool = pool

	code := m.Run()
	pool.Close()
	os.Exit(code)
}

func cleanTables(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `
TRUNCATE ledger_entries, approval_steps, resource_bookings, venue_bookings,
         resource_requests, events, resources, venues, users CASCADE`)
	require.NoError(t, err)
}

var start = time.Now().Add(240 * time.Hour).UTC().Truncate(time.Hour)

func seed(t *testing.T, events ...event.Event) {
	t.Helper()
	err := db.WithTx(context.Background(), testPool, func(tx pgx.Tx) error {
		ctx := context.Background()
		if err := user.Insert(ctx, tx, &user.User{ID: "u-c", Name: "Casey", Email: "casey@campus.test", Role: user.RoleCoordinator, SchoolID: "sch", DepartmentID: "dep", IsActive: true}); err != nil {
			return err
		}
		if err := venue.Insert(ctx, tx, &venue.Venue{ID: "v-1", Name: "Main Hall", Capacity: 100, Type: "hall", IsActive: true}); err != nil {
			return err
		}
		if err := resource.Insert(ctx, tx, &resource.Resource{ID: "r-1", Name: "Projector", TotalQuantity: 3, Unit: "unit", IsActive: true}); err != nil {
			return err
		}
		for i := range events {
			if err := event.Insert(ctx, tx, &events[i]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func headApproved(id string) event.Event {
	return event.Event{
		ID: id, Title: "Event " + id,
		StartTime: start, EndTime: start.Add(2 * time.Hour),
		ParticipantCount: 40, SchoolID: "sch", DepartmentID: "dep", CoordinatorID: "u-c",
		Status: event.StatusSubmitted, Stage: event.StageHeadApproved,
	}
}

func TestAllocateEvent_WritesBookings(t *testing.T) {
	cleanTables(t)
	seed(t, headApproved("ev-1"))
	err := db.WithTx(context.Background(), testPool, func(tx pgx.Tx) error {
		return event.InsertRequest(context.Background(), tx, &event.ResourceRequest{ID: "rq-1", EventID: "ev-1", ResourceID: "r-1", Quantity: 2})
	})
	require.NoError(t, err)

	st := pgstore.New(testPool, 5, nil)
	res, err := allocation.NewEngine(st, nil).AllocateEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	require.True(t, res.Success, res.Explanation())

	err = st.WithReadOnlyTx(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		ev, err := tx.GetEvent(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, event.StageApproved, ev.Stage)
		assert.Equal(t, event.StatusApproved, ev.Status)

		vbs, err := tx.ListOverlappingVenueBookings(ctx, "v-1", ev.Window())
		require.NoError(t, err)
		require.Len(t, vbs, 1)
		assert.Equal(t, booking.StatusConfirmed, vbs[0].Status)

		rqs, err := tx.ListResourceRequests(ctx, "ev-1")
		require.NoError(t, err)
		require.Len(t, rqs, 1)
		assert.True(t, rqs[0].IsAllocated)
		assert.Equal(t, 2, rqs[0].AllocatedQuantity)
		return nil
	})
	require.NoError(t, err)
}

func TestAllocateEvent_ConcurrentRequestsBookVenueOnce(t *testing.T) {
	cleanTables(t)
	seed(t, headApproved("ev-a"), headApproved("ev-b"))

	eng := allocation.NewEngine(pgstore.New(testPool, 10, nil), nil)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, id := range []string{"ev-a", "ev-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := eng.AllocateEvent(context.Background(), id)
			if err != nil {
				t.Logf("allocate %s: %v", id, err)
				return
			}
			if res.Success {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 1, successes)

	var confirmed int
	err := testPool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM venue_bookings WHERE venue_id = 'v-1' AND status = 'confirmed'`).Scan(&confirmed)
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)
}

func TestCancelStaleProvisionalBookings(t *testing.T) {
	cleanTables(t)
	seed(t, headApproved("ev-1"))
	st := pgstore.New(testPool, 5, nil)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertVenueBooking(ctx, &booking.VenueBooking{ID: "vb-p", EventID: "ev-1", VenueID: "v-1",
			StartTime: start, EndTime: start.Add(time.Hour), Status: booking.StatusProvisional})
	})
	require.NoError(t, err)

	var released booking.Released
	err = st.WithTx(ctx, func(tx store.Tx) error {
		var err error
		released, err = tx.CancelStaleProvisionalBookings(ctx, time.Now().Add(time.Minute), time.Now())
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, booking.Released{Venues: 1}, released)
}
