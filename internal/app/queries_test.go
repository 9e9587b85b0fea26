package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mealsfly_review/internal/app"
	"mealsfly_review/internal/domain"
)

// ---- fakes ----

type countingRepo struct {
	domain.RestaurantRepository
	r     domain.Restaurant
	calls int
}

func (f *countingRepo) GetRestaurant(ctx context.Context, id int64) (domain.Restaurant, error) {
	f.calls++
	if id != f.r.ID {
		return domain.Restaurant{}, domain.ErrNotFound
	}
	return f.r, nil
}

type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	return errors.New("redis down")
}
func (brokenCache) SetNX(ctx context.Context, key string, v any, ttlSec int) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenCache) Del(ctx context.Context, key string) error { return errors.New("redis down") }

// ---- tests ----

func TestGetRestaurant_CacheMissThenHit(t *testing.T) {
	reviewer := int64(7)
	repo := &countingRepo{r: domain.Restaurant{
		ID:           42,
		Name:         "Cached Cafe",
		Location:     domain.GeoPoint{Lat: 12.9, Lng: 77.6},
		ReviewStatus: domain.StatusCompleted,
		ReviewedBy:   &reviewer,
		Images:       &domain.ReviewImages{FSSAI: "a", Menu: "b", Banner: "c"},
	}}
	cache := &jsonCache{}
	q := app.NewQueryService(repo, cache, 10*time.Minute)
	sess := domain.Session{UserID: 7, Role: domain.RoleUser}

	// Miss (first time, populates cache)
	r, err := q.GetRestaurant(context.Background(), sess, 42)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if r.ID != 42 || r.Name != "Cached Cafe" {
		t.Fatalf("unexpected restaurant: %+v", r)
	}

	// Hit (served from cache, repo untouched)
	r, err = q.GetRestaurant(context.Background(), sess, 42)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected 1 repo call, got %d", repo.calls)
	}
	if r.ReviewedBy == nil || *r.ReviewedBy != 7 || r.Images == nil || r.Images.Banner != "c" {
		t.Fatalf("cached copy lost fields: %+v", r)
	}
}

func TestGetRestaurant_CacheFailureFallsBackToStore(t *testing.T) {
	repo := &countingRepo{r: domain.Restaurant{ID: 1, Name: "Fallback"}}
	q := app.NewQueryService(repo, brokenCache{}, time.Minute)

	r, err := q.GetRestaurant(context.Background(), domain.Session{}, 1)
	if err != nil || r.Name != "Fallback" {
		t.Fatalf("got %+v, %v", r, err)
	}
	if _, err := q.GetRestaurant(context.Background(), domain.Session{}, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetRestaurant_WritesInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.restaurant(t, "Fresh", 12.9, 77.6)
	u := f.reviewer(t, "uma", true)
	q := app.NewQueryService(f.store, f.cache, time.Minute)

	before, err := q.GetRestaurant(ctx, u, r.ID)
	if err != nil || before.ReviewStatus != domain.StatusNotStarted {
		t.Fatalf("before: %+v %v", before, err)
	}
	if _, err := f.tasks.Assign(ctx, u, r.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	after, err := q.GetRestaurant(ctx, u, r.ID)
	if err != nil || after.ReviewStatus != domain.StatusPending {
		t.Fatalf("stale read after assign: %+v %v", after, err)
	}
}

// racingRepo returns what it read before running between, which lands a
// write after the read but before the caller can cache the result.
type racingRepo struct {
	domain.RestaurantRepository
	between func()
}

func (r *racingRepo) GetRestaurant(ctx context.Context, id int64) (domain.Restaurant, error) {
	got, err := r.RestaurantRepository.GetRestaurant(ctx, id)
	if r.between != nil {
		r.between()
		r.between = nil
	}
	return got, err
}

func TestGetRestaurant_ReadRacingAWriteIsNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.restaurant(t, "Racy Rolls", 12.9, 77.6)
	u := f.reviewer(t, "uma", true)

	repo := &racingRepo{RestaurantRepository: f.store, between: func() {
		if _, err := f.tasks.Assign(ctx, u, r.ID); err != nil {
			t.Errorf("Assign: %v", err)
		}
	}}
	q := app.NewQueryService(repo, f.cache, time.Minute)

	stale, err := q.GetRestaurant(ctx, u, r.ID)
	if err != nil || stale.ReviewStatus != domain.StatusNotStarted {
		t.Fatalf("racing read: %+v %v", stale, err)
	}
	got, err := q.GetRestaurant(ctx, u, r.ID)
	if err != nil || got.ReviewStatus != domain.StatusPending {
		t.Fatalf("pre-write copy was cached: %+v %v", got, err)
	}

	// Once the fence lapses the next read refills with current state.
	f.cache.expire(fmt.Sprintf("restaurant:%d", r.ID))
	if _, err := q.GetRestaurant(ctx, u, r.ID); err != nil {
		t.Fatalf("refill: %v", err)
	}
	var cached domain.Restaurant
	if ok, _ := f.cache.Get(ctx, fmt.Sprintf("restaurant:%d", r.ID), &cached); !ok || cached.ReviewStatus != domain.StatusPending {
		t.Fatalf("refill cached %+v", cached)
	}
}
