package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mealsfly_review/internal/app"
	"mealsfly_review/internal/domain"
	"mealsfly_review/internal/storage/memory"
)

type fakeDirectory struct {
	mu      sync.Mutex
	records map[string]map[string]any
}

func (d *fakeDirectory) ListRestaurantIDs(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := []string{"missing"}
	for id := range d.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *fakeDirectory) GetRestaurant(ctx context.Context, id string) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return rec, nil
}

func TestImportAll_UpsertsAndSkips(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{records: map[string]map[string]any{
		"r1": {
			"id": "r1", "name": "Dosa Point", "phone": "080-1",
			"address":  "1 MG Road",
			"location": map[string]any{"type": "Point", "coordinates": []any{77.59, 12.97}},
		},
		"r2": {
			"_id": "r2", "restaurant_name": "Idli House", "contact": map[string]any{"phone": "080-2"},
			"address":  map[string]any{"line1": "2 Church St", "city": "Bengaluru"},
			"latitude": "12,95", "longitude": 77.6,
		},
		"r3": {"id": "r3", "name": "Nowhere"},
	}}
	store := memory.New()
	cache := &jsonCache{}
	imp := app.NewImportService(dir, store, cache)

	rep, err := imp.ImportAll(ctx, 2)
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if diff := cmp.Diff(app.ImportReport{Created: 2, Skipped: 2}, rep); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}

	all, _ := store.ListRestaurants(ctx, domain.RestaurantFilter{})
	byName := map[string]domain.Restaurant{}
	for _, r := range all {
		byName[r.Name] = r
	}
	r2 := byName["Idli House"]
	if r2.Address != "2 Church St, Bengaluru" || r2.Phone != "080-2" || r2.Location != (domain.GeoPoint{Lat: 12.95, Lng: 77.6}) {
		t.Fatalf("r2 mapped wrong: %+v", r2)
	}

	// Claim r1, then refresh: review state must survive.
	r1 := byName["Dosa Point"]
	tasks := app.NewTaskService(store, cache, nil)
	users := app.NewUserService(store, plainHasher{}, cache, nil)
	admin, _, _ := users.EnsureAdmin(ctx, "Root", "root", "secret-pass")
	u, _ := users.Register(ctx, "Uma", "uma", "password1")
	if _, err := users.ApproveUser(ctx, domain.Session{UserID: admin.ID, Role: domain.RoleAdmin}, u.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := tasks.Assign(ctx, domain.Session{UserID: u.ID, Role: domain.RoleUser}, r1.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	dir.mu.Lock()
	dir.records["r1"]["name"] = "Dosa Point Express"
	dir.mu.Unlock()

	rep, err = imp.ImportAll(ctx, 4)
	if err != nil {
		t.Fatalf("second ImportAll: %v", err)
	}
	if rep.Updated != 2 || rep.Created != 0 {
		t.Fatalf("second report: %+v", rep)
	}
	got, _ := store.GetRestaurant(ctx, r1.ID)
	if got.Name != "Dosa Point Express" || got.ReviewStatus != domain.StatusPending {
		t.Fatalf("refresh clobbered review state: %+v", got)
	}
}
