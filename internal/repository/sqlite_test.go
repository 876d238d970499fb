package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mr1hm/pest-forecast/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteDB {
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	return db
}

// stores runs each test against both backends.
func stores(t *testing.T) map[string]ObservationRepository {
	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })
	return map[string]ObservationRepository{
		"sqlite": db,
		"memory": NewMemoryStore(),
	}
}

func obs(id, pest string, lat, lon float64) *models.Observation {
	return &models.Observation{
		ID:        id,
		Timestamp: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC),
		Latitude:  lat,
		Longitude: lon,
		PestType:  pest,
		Count:     10,
		Severity:  0.5,
		FieldID:   "field_" + id,
		Observer:  "test",
	}
}

func TestSQLiteDB_AddAndGetObservation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	o := obs("test_123", "aphids", 36.7783, -119.4179)

	// Add
	err := db.Add(ctx, o)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Get
	got, err := db.GetByID(ctx, "test_123")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PestType != "aphids" || got.Count != 10 || got.Severity != 0.5 {
		t.Errorf("unexpected observation: %+v", got)
	}
	if !got.Timestamp.Equal(o.Timestamp) {
		t.Errorf("expected timestamp %v, got %v", o.Timestamp, got.Timestamp)
	}
	if got.FieldID != "field_test_123" {
		t.Errorf("expected field_id 'field_test_123', got '%s'", got.FieldID)
	}
}

func TestRepository_AddDuplicate(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := repo.Add(ctx, obs("dup", "aphids", 36.7, -119.4)); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			err := repo.Add(ctx, obs("dup", "aphids", 36.7, -119.4))
			if !errors.Is(err, ErrDuplicate) {
				t.Errorf("expected ErrDuplicate, got %v", err)
			}
			if n, _ := repo.Count(ctx); n != 1 {
				t.Errorf("expected 1 observation, got %d", n)
			}
		})
	}
}

func TestRepository_GetMissing(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.GetByID(context.Background(), "nope")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRepository_Exists(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			exists, err := repo.Exists(ctx, "nonexistent")
			if err != nil {
				t.Fatalf("Exists failed: %v", err)
			}
			if exists {
				t.Error("expected false for nonexistent ID")
			}

			if err := repo.Add(ctx, obs("exists_test", "aphids", 1, 1)); err != nil {
				t.Fatalf("Add failed: %v", err)
			}

			exists, err = repo.Exists(ctx, "exists_test")
			if err != nil {
				t.Fatalf("Exists failed: %v", err)
			}
			if !exists {
				t.Error("expected true for existing ID")
			}
		})
	}
}

func TestRepository_ListObservations_WithFilters(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, o := range []*models.Observation{
				obs("a1", "aphids", 40.0, -74.0),
				obs("a2", "aphids", 40.5, -74.5),
				obs("w1", "whiteflies", 40.0, -74.0),
				obs("a3", "aphids", 10.0, 10.0),
			} {
				if err := repo.Add(ctx, o); err != nil {
					t.Fatalf("Add failed: %v", err)
				}
			}

			results, err := repo.ListObservations(ctx, Filter{PestType: "aphids"})
			if err != nil {
				t.Fatalf("ListObservations failed: %v", err)
			}
			if len(results) != 3 {
				t.Errorf("expected 3 aphid observations, got %d", len(results))
			}
			if len(results) > 0 && results[0].ID != "a1" {
				t.Errorf("expected insertion order, first was %s", results[0].ID)
			}

			b := models.Bounds{MinLat: 39.9, MinLon: -74.6, MaxLat: 40.5, MaxLon: -73.9}
			results, err = repo.ListObservations(ctx, Filter{PestType: "aphids", Bounds: &b})
			if err != nil {
				t.Fatalf("ListObservations failed: %v", err)
			}
			if len(results) != 2 {
				t.Errorf("expected 2 aphid observations in bounds (edge inclusive), got %d", len(results))
			}

			results, err = repo.ListObservations(ctx, Filter{Limit: 2, Offset: 1})
			if err != nil {
				t.Fatalf("ListObservations failed: %v", err)
			}
			if len(results) != 2 || results[0].ID != "a2" {
				t.Errorf("expected [a2 w1] page, got %v", results)
			}

			n, err := repo.Count(ctx)
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if n != 4 {
				t.Errorf("expected count 4, got %d", n)
			}
		})
	}
}

func TestRepository_DuplicateAdd(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			o := obs("dup_test", "aphids", 1, 1)

			// First add should succeed
			if err := repo.Add(ctx, o); err != nil {
				t.Fatalf("First Add failed: %v", err)
			}

			// Second add should fail (duplicate primary key)
			if err := repo.Add(ctx, o); err == nil {
				t.Error("expected error for duplicate ID, got nil")
			}
		})
	}
}

func TestMemoryStore_ListIsSnapshot(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	m.Add(ctx, obs("s1", "aphids", 1, 1))

	snap, _ := m.ListObservations(ctx, Filter{})
	m.Add(ctx, obs("s2", "aphids", 1, 1))
	snap[0].Count = 999

	if len(snap) != 1 {
		t.Errorf("snapshot grew to %d", len(snap))
	}
	got, _ := m.GetByID(ctx, "s1")
	if got.Count != 10 {
		t.Errorf("stored observation mutated through snapshot: %d", got.Count)
	}
}

func TestAlerts_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repos := map[string]AlertRepository{"sqlite": db, "memory": NewMemoryStore()}
	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
			for i, pest := range []string{"aphids", "thrips", "aphids"} {
				err := repo.AddAlert(ctx, &models.RiskAlert{
					ID:                string(rune('a' + i)),
					ForecastID:        "f",
					PestType:          pest,
					Center:            models.Coordinates{Latitude: 36.7, Longitude: -119.4},
					RadiusKm:          15,
					Category:          models.RiskHigh,
					PeakRiskTime:      "48h",
					HighRiskAreaCount: i,
					CreatedAt:         base.Add(time.Duration(i) * time.Hour),
				})
				if err != nil {
					t.Fatalf("AddAlert failed: %v", err)
				}
			}

			got, err := repo.ListAlerts(ctx, Filter{PestType: "aphids"})
			if err != nil {
				t.Fatalf("ListAlerts failed: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 aphid alerts, got %d", len(got))
			}
			if got[0].ID != "c" || got[0].Center.Latitude != 36.7 || got[0].Category != models.RiskHigh {
				t.Errorf("unexpected newest alert: %+v", got[0])
			}
		})
	}
}
