package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"mealsfly_review/internal/domain"
)

const (
	BannerWidth  = 1280
	BannerHeight = 720
)

type ReviewService struct {
	store     domain.Store
	inspector domain.ImageInspector
	fx        effects
}

func NewReviewService(s domain.Store, insp domain.ImageInspector, c domain.Cache, e domain.EventPublisher) *ReviewService {
	return &ReviewService{store: s, inspector: insp, fx: effects{cache: c, events: e}}
}

// SubmitReview completes the caller's pending task with three image
// references. Nothing is written unless every check passes and both the task
// and its restaurant are still pending at commit time.
func (s *ReviewService) SubmitReview(ctx context.Context, sess domain.Session, taskID int64, imgs domain.ReviewImages) (domain.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.UserID != sess.UserID {
		return domain.Task{}, fmt.Errorf("%w: task %d belongs to another reviewer", domain.ErrForbidden, taskID)
	}
	if err := requireApprovedReviewer(ctx, s.store, sess); err != nil {
		return domain.Task{}, err
	}
	if task.Status != domain.TaskPending {
		return domain.Task{}, fmt.Errorf("%w: task %d is %s", domain.ErrConflict, taskID, task.Status)
	}
	if err := s.validateImages(ctx, imgs); err != nil {
		return domain.Task{}, err
	}

	now := time.Now().UTC()
	err = s.store.WithinTx(ctx, func(tx domain.Tx) error {
		ok, err := tx.SwapTaskState(ctx, taskID, sess.UserID, domain.TaskPending, domain.TaskState{
			Status:     domain.TaskCompleted,
			ReviewDate: &now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: task %d is no longer pending", domain.ErrConflict, taskID)
		}
		reviewer := sess.UserID
		ok, err = tx.SwapRestaurantState(ctx, task.RestaurantID, domain.StatusPending, domain.RestaurantState{
			Status:     domain.StatusCompleted,
			ReviewedBy: &reviewer,
			Images:     &imgs,
			UpdatedAt:  now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: restaurant %d is no longer pending", domain.ErrConflict, task.RestaurantID)
		}
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}

	task.Status = domain.TaskCompleted
	task.ReviewDate = &now
	s.fx.emit(ctx, domain.TaskEvent{
		Type:         domain.EventTaskCompleted,
		RestaurantID: task.RestaurantID,
		TaskID:       taskID,
		UserID:       sess.UserID,
		OldStatus:    domain.StatusPending,
		NewStatus:    domain.StatusCompleted,
		ActorID:      sess.UserID,
		At:           now,
	})
	return task, nil
}

func (s *ReviewService) validateImages(ctx context.Context, imgs domain.ReviewImages) error {
	for _, slot := range []struct{ name, ref string }{
		{"fssaiImage", imgs.FSSAI},
		{"menuImage", imgs.Menu},
		{"bannerImage", imgs.Banner},
	} {
		if strings.TrimSpace(slot.ref) == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrInvalid, slot.name)
		}
		u, err := url.Parse(slot.ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s must be an absolute http(s) URL", domain.ErrInvalid, slot.name)
		}
	}

	w, h, err := s.inspector.Dimensions(ctx, imgs.Banner)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: banner image could not be read: %v", domain.ErrInvalid, err)
	}
	if w != BannerWidth || h != BannerHeight {
		return fmt.Errorf("%w: banner must be %dx%d pixels, got %dx%d", domain.ErrInvalid, BannerWidth, BannerHeight, w, h)
	}
	return nil
}
