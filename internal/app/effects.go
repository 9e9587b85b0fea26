package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mealsfly_review/internal/domain"
)

const (
	// effectTimeout bounds post-commit work once it is cut loose from the request.
	effectTimeout = 2 * time.Second
	// fenceTTL is how long a write keeps readers from repopulating a key.
	fenceTTL = 5
)

func restaurantKey(id int64) string { return fmt.Sprintf("restaurant:%d", id) }

// fenceRestaurant replaces the cached restaurant with a short-lived null
// marker. Readers treat it as a miss and may only repopulate with SetNX, so
// a copy read before the write cannot land after it.
func fenceRestaurant(ctx context.Context, c domain.Cache, id int64) error {
	return c.Set(ctx, restaurantKey(id), nil, fenceTTL)
}

// effects runs the post-commit side effects. Failures are logged and never
// surfaced: the state change has already happened.
type effects struct {
	cache  domain.Cache
	events domain.EventPublisher
}

// detach keeps request values (request id, logger) but drops the request's
// cancellation, so a client that hangs up or times out cannot abort them.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), effectTimeout)
}

func (f effects) invalidate(ctx context.Context, restaurantID int64) {
	if f.cache == nil {
		return
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	if err := fenceRestaurant(ctx, f.cache, restaurantID); err != nil {
		log.Warn().Err(err).Int64("restaurant_id", restaurantID).Msg("cache invalidation failed")
	}
}

func (f effects) emit(ctx context.Context, e domain.TaskEvent) {
	f.invalidate(ctx, e.RestaurantID)
	if f.events == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	if err := f.events.Publish(ctx, e); err != nil {
		log.Error().Err(err).
			Str("event", e.Type).
			Int64("restaurant_id", e.RestaurantID).
			Msg("publish task event failed")
	}
}
