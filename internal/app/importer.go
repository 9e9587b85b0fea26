package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"mealsfly_review/internal/domain"
)

type ImportService struct {
	dir   domain.DirectoryClient
	repo  domain.RestaurantRepository
	cache domain.Cache
}

func NewImportService(d domain.DirectoryClient, r domain.RestaurantRepository, c domain.Cache) *ImportService {
	return &ImportService{dir: d, repo: r, cache: c}
}

type ImportReport struct {
	Created, Updated, Skipped, Failed int64
}

// ImportRestaurant fetches one directory record and upserts it. Records the
// directory no longer serves, or that fail validation, are skipped.
func (s *ImportService) ImportRestaurant(ctx context.Context, externalID string) (created bool, err error) {
	p, err := s.dir.GetRestaurant(ctx, externalID)
	if err != nil {
		return false, err
	}
	n := mapRestaurant(externalID, p)
	if err := n.Validate(); err != nil {
		return false, err
	}
	r, created, err := s.repo.UpsertRestaurantByExternalID(ctx, n, time.Now().UTC())
	if err != nil {
		return false, err
	}
	// A refresh changes what readers see; review state itself is untouched.
	if !created && s.cache != nil {
		_ = fenceRestaurant(ctx, s.cache, r.ID)
	}
	return created, nil
}

// ImportAll lists the directory and imports every record with at most
// workers requests in flight.
func (s *ImportService) ImportAll(ctx context.Context, workers int) (ImportReport, error) {
	ids, err := s.dir.ListRestaurantIDs(ctx)
	if err != nil {
		return ImportReport{}, fmt.Errorf("list directory: %w", err)
	}
	if workers < 1 {
		workers = 1
	}

	var (
		rep ImportReport
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(workers))
	)
	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return rep, err
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)

			created, err := s.ImportRestaurant(ctx, id)
			switch {
			case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalid):
				atomic.AddInt64(&rep.Skipped, 1)
				log.Warn().Str("external_id", id).Err(err).Msg("import skipped")
			case err != nil:
				atomic.AddInt64(&rep.Failed, 1)
				log.Warn().Str("external_id", id).Err(err).Msg("import failed")
			case created:
				atomic.AddInt64(&rep.Created, 1)
			default:
				atomic.AddInt64(&rep.Updated, 1)
			}
		}(id)
	}
	wg.Wait()

	log.Info().
		Int64("created", rep.Created).
		Int64("updated", rep.Updated).
		Int64("skipped", rep.Skipped).
		Int64("failed", rep.Failed).
		Msg("directory import completed")
	return rep, nil
}
