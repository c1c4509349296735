package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"venueflow/internal/event"
	"venueflow/internal/resource"
	"venueflow/internal/user"
	"venueflow/internal/venue"
	"venueflow/pkg/config"
	"venueflow/pkg/db"
)

// seed fills an empty database with one school, one department, a user per
// role, a few venues and resources, and a draft event ready to submit.
func main() {
	var (
		schoolID = flag.String("school", "sch-eng", "school id")
		deptID   = flag.String("department", "dep-cs", "department id")
		daysOut  = flag.Int("days-out", 7, "days from now the sample event starts")
	)
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
	}

	users := []user.User{
		{Name: "Casey Coordinator", Email: "coordinator@example.edu", Role: user.RoleCoordinator, SchoolID: *schoolID, DepartmentID: *deptID},
		{Name: "Harper Head of Department", Email: "hod@example.edu", Role: user.RoleDepartmentHead, SchoolID: *schoolID, DepartmentID: *deptID},
		{Name: "Dana Dean", Email: "dean@example.edu", Role: user.RoleDean, SchoolID: *schoolID},
		{Name: "Ira Institutional Head", Email: "head@example.edu", Role: user.RoleInstitutionalHead},
		{Name: "Alex Admin", Email: "admin@example.edu", Role: user.RoleAdmin},
	}
	venues := []venue.Venue{
		{Name: "Seminar Room 101", Capacity: 40, Type: "seminar", IsActive: true},
		{Name: "Lecture Hall A", Capacity: 120, Type: "lecture", IsActive: true},
		{Name: "Auditorium", Capacity: 500, Type: "auditorium", IsActive: true},
		{Name: "Old Gym", Capacity: 300, Type: "hall", IsActive: true, UnderMaintenance: true},
	}
	resources := []resource.Resource{
		{Name: "Chairs", TotalQuantity: 200, Unit: "pcs", IsActive: true},
		{Name: "Wireless microphones", TotalQuantity: 8, Unit: "pcs", IsActive: true},
		{Name: "Projectors", TotalQuantity: 4, Unit: "pcs", IsActive: true},
	}

	start := time.Now().UTC().Truncate(time.Hour).Add(time.Duration(*daysOut) * 24 * time.Hour)
	var sample event.Event

	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for i := range users {
			users[i].ID = uuid.NewString()
			users[i].IsActive = true
			if err := user.Insert(ctx, tx, &users[i]); err != nil {
				return fmt.Errorf("insert user %s: %w", users[i].Email, err)
			}
		}
		for i := range venues {
			venues[i].ID = uuid.NewString()
			if err := venue.Insert(ctx, tx, &venues[i]); err != nil {
				return fmt.Errorf("insert venue %s: %w", venues[i].Name, err)
			}
		}
		for i := range resources {
			resources[i].ID = uuid.NewString()
			if err := resource.Insert(ctx, tx, &resources[i]); err != nil {
				return fmt.Errorf("insert resource %s: %w", resources[i].Name, err)
			}
		}

		sample = event.Event{
			ID:               uuid.NewString(),
			Title:            "Department research showcase",
			StartTime:        start,
			EndTime:          start.Add(3 * time.Hour),
			ParticipantCount: 90,
			SchoolID:         *schoolID,
			DepartmentID:     *deptID,
			CoordinatorID:    users[0].ID,
			Status:           event.StatusDraft,
			Stage:            event.StageDraft,
		}
		if err := event.Insert(ctx, tx, &sample); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		for _, rq := range []event.ResourceRequest{
			{ResourceID: resources[0].ID, Quantity: 90},
			{ResourceID: resources[1].ID, Quantity: 2},
		} {
			rq.ID = uuid.NewString()
			rq.EventID = sample.ID
			if err := event.InsertRequest(ctx, tx, &rq); err != nil {
				return fmt.Errorf("insert resource request: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("seeded")
	for _, u := range users {
		fmt.Printf("  %-18s %s\n", u.Role, u.ID)
	}
	fmt.Printf("  sample event       %s (%s)\n", sample.ID, sample.StartTime.Format(time.RFC3339))
	fmt.Println("submit it with: curl -X POST -H 'X-User-Id: " + users[0].ID + "' localhost" + cfg.HTTPAddr + "/v1/events/" + sample.ID + "/submit")
}
