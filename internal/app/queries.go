package app

import (
	"context"
	"time"

	"mealsfly_review/internal/domain"
)

type QueryService struct {
	repo     domain.RestaurantRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.RestaurantRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// GetRestaurant is open to both roles. Cache errors fall through to the store.
// A null entry is a write fence: it counts as a miss and blocks the refill.
func (s *QueryService) GetRestaurant(ctx context.Context, sess domain.Session, id int64) (domain.Restaurant, error) {
	key := restaurantKey(id)
	if s.cache != nil {
		var cached *domain.Restaurant
		if ok, _ := s.cache.Get(ctx, key, &cached); ok && cached != nil {
			return *cached, nil
		}
	}
	r, err := s.repo.GetRestaurant(ctx, id)
	if err != nil {
		return domain.Restaurant{}, err
	}
	if s.cache != nil {
		_, _ = s.cache.SetNX(ctx, key, r, int(s.cacheTTL.Seconds()))
	}
	return r, nil
}
