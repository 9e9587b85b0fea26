package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mealsfly_review/internal/domain"
	"mealsfly_review/internal/storage"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	for _, driver := range []string{"memory", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			st, closeFn, err := storage.Open(ctx, driver, "", filepath.Join(t.TempDir(), "open.db"))
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer closeFn()
			r, err := st.CreateRestaurant(ctx, domain.NewRestaurant{
				Name:     "Udupi Grand",
				Location: domain.GeoPoint{Lat: 12.97, Lng: 77.59},
			}, time.Now().UTC())
			if err != nil || r.ReviewStatus != domain.StatusNotStarted {
				t.Fatalf("CreateRestaurant = %+v, %v", r, err)
			}
		})
	}

	if _, _, err := storage.Open(ctx, "postgres", "", ""); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
