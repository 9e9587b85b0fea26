package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"mealsfly_review/internal/domain"
)

// overrideAttempts bounds how often an admin override re-reads after losing
// a compare-and-set to a concurrent reviewer action.
const overrideAttempts = 3

var errOverrideRaced = errors.New("admin override raced")

type TaskService struct {
	store domain.Store
	fx    effects
}

func NewTaskService(s domain.Store, c domain.Cache, e domain.EventPublisher) *TaskService {
	return &TaskService{store: s, fx: effects{cache: c, events: e}}
}

// Assignable is a not_started restaurant, with its distance when the caller sent a location.
type Assignable struct {
	domain.Restaurant
	DistanceKm *float64
}

func requireAdmin(sess domain.Session) error {
	if !sess.IsAdmin() {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return nil
}

// requireApprovedReviewer re-reads the account so that approval changes apply
// to tokens issued before them.
func requireApprovedReviewer(ctx context.Context, users domain.UserRepository, sess domain.Session) error {
	if sess.Role != domain.RoleUser {
		return fmt.Errorf("%w: only reviewers can work on tasks", domain.ErrForbidden)
	}
	u, err := users.GetUser(ctx, sess.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: account %d no longer exists", domain.ErrForbidden, sess.UserID)
	}
	if err != nil {
		return err
	}
	if !u.Approved {
		return fmt.Errorf("%w: account is awaiting admin approval", domain.ErrForbidden)
	}
	return nil
}

func (s *TaskService) Assign(ctx context.Context, sess domain.Session, restaurantID int64) (domain.Task, error) {
	if err := requireApprovedReviewer(ctx, s.store, sess); err != nil {
		return domain.Task{}, err
	}
	now := time.Now().UTC()
	var (
		task domain.Task
		rest domain.Restaurant
	)
	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		var err error
		if rest, err = tx.GetRestaurant(ctx, restaurantID); err != nil {
			return err
		}
		if rest.ReviewStatus != domain.StatusNotStarted {
			return fmt.Errorf("%w: restaurant %d is already %s", domain.ErrConflict, restaurantID, rest.ReviewStatus)
		}
		ok, err := tx.SwapRestaurantState(ctx, restaurantID, domain.StatusNotStarted, domain.RestaurantState{
			Status:    domain.StatusPending,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: restaurant %d was just claimed by another reviewer", domain.ErrConflict, restaurantID)
		}
		task, err = tx.InsertTask(ctx, domain.Task{
			RestaurantID: restaurantID,
			UserID:       sess.UserID,
			Status:       domain.TaskPending,
			AssignedAt:   now,
		})
		return err
	})
	if err != nil {
		return domain.Task{}, err
	}
	rest.ReviewStatus = domain.StatusPending
	sum := rest.Summary()
	task.Restaurant = &sum

	s.fx.emit(ctx, domain.TaskEvent{
		Type:         domain.EventTaskAssigned,
		RestaurantID: restaurantID,
		TaskID:       task.ID,
		UserID:       sess.UserID,
		OldStatus:    domain.StatusNotStarted,
		NewStatus:    domain.StatusPending,
		ActorID:      sess.UserID,
		At:           now,
	})
	return task, nil
}

type AssignableQuery struct {
	Near     *domain.GeoPoint
	RadiusKm float64
	Search   string
}

// matches is a case-insensitive substring match on name, phone and address.
func matches(r domain.Restaurant, search string) bool {
	q := strings.ToLower(strings.TrimSpace(search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Name), q) ||
		strings.Contains(strings.ToLower(r.Phone), q) ||
		strings.Contains(strings.ToLower(r.Address), q)
}

// ListAssignable returns not_started restaurants. With Near set they are
// ordered by distance and, for RadiusKm > 0, limited to that radius.
func (s *TaskService) ListAssignable(ctx context.Context, sess domain.Session, q AssignableQuery) ([]Assignable, error) {
	near, radiusKm := q.Near, q.RadiusKm
	if radiusKm < 0 {
		return nil, fmt.Errorf("%w: radiusKm must not be negative", domain.ErrInvalid)
	}
	if near != nil && !near.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalid)
	}
	if near == nil && radiusKm > 0 {
		return nil, fmt.Errorf("%w: radiusKm requires lat and lng", domain.ErrInvalid)
	}
	st := domain.StatusNotStarted
	rs, err := s.store.ListRestaurants(ctx, domain.RestaurantFilter{Status: &st})
	if err != nil {
		return nil, err
	}
	out := make([]Assignable, 0, len(rs))
	for _, r := range rs {
		if !matches(r, q.Search) {
			continue
		}
		a := Assignable{Restaurant: r}
		if near != nil {
			d := domain.DistanceKm(*near, r.Location)
			if radiusKm > 0 && d > radiusKm {
				continue
			}
			a.DistanceKm = &d
		}
		out = append(out, a)
	}
	if near != nil {
		sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceKm < *out[j].DistanceKm })
	}
	return out, nil
}

func (s *TaskService) ListPending(ctx context.Context, sess domain.Session) ([]domain.Task, error) {
	return s.listOwn(ctx, sess, domain.TaskPending)
}

func (s *TaskService) ListCompleted(ctx context.Context, sess domain.Session) ([]domain.Task, error) {
	return s.listOwn(ctx, sess, domain.TaskCompleted)
}

func (s *TaskService) listOwn(ctx context.Context, sess domain.Session, st domain.TaskStatus) ([]domain.Task, error) {
	if sess.Role != domain.RoleUser {
		return nil, fmt.Errorf("%w: only reviewers have tasks", domain.ErrForbidden)
	}
	return s.store.ListTasks(ctx, domain.TaskFilter{UserID: sess.UserID, Status: &st})
}

/********** admin **********/

func (s *TaskService) AdminCreateRestaurant(ctx context.Context, sess domain.Session, n domain.NewRestaurant) (domain.Restaurant, error) {
	if err := requireAdmin(sess); err != nil {
		return domain.Restaurant{}, err
	}
	if err := n.Validate(); err != nil {
		return domain.Restaurant{}, err
	}
	return s.store.CreateRestaurant(ctx, n, time.Now().UTC())
}

func (s *TaskService) AdminListRestaurants(ctx context.Context, sess domain.Session, status *domain.ReviewStatus, search string) ([]domain.Restaurant, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown review status %q", domain.ErrInvalid, *status)
	}
	rs, err := s.store.ListRestaurants(ctx, domain.RestaurantFilter{Status: status})
	if err != nil || search == "" {
		return rs, err
	}
	out := rs[:0]
	for _, r := range rs {
		if matches(r, search) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *TaskService) AdminUserTasks(ctx context.Context, sess domain.Session, userID int64) ([]domain.Task, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, domain.TaskFilter{UserID: userID})
}

func (s *TaskService) AdminRestaurantAudit(ctx context.Context, sess domain.Session, restaurantID int64) ([]domain.AdminAction, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if _, err := s.store.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	return s.store.ListAdminActions(ctx, restaurantID)
}

// AdminSetStatus forces restaurantID into status. It bypasses the reviewer
// state machine but keeps the task records consistent with the result.
func (s *TaskService) AdminSetStatus(ctx context.Context, sess domain.Session, restaurantID int64, status domain.ReviewStatus) (domain.Restaurant, error) {
	if err := requireAdmin(sess); err != nil {
		return domain.Restaurant{}, err
	}
	if !status.Valid() {
		return domain.Restaurant{}, fmt.Errorf("%w: unknown review status %q", domain.ErrInvalid, status)
	}

	var (
		from   domain.ReviewStatus
		out    domain.Restaurant
		taskID int64
		err    error
	)
	for attempt := 0; attempt < overrideAttempts; attempt++ {
		now := time.Now().UTC()
		err = s.store.WithinTx(ctx, func(tx domain.Tx) error {
			cur, err := tx.GetRestaurant(ctx, restaurantID)
			if err != nil {
				return err
			}
			from = cur.ReviewStatus
			if from != status {
				if taskID, err = overrideTasks(ctx, tx, cur, status, sess.UserID, now); err != nil {
					return err
				}
			}
			if out, err = tx.GetRestaurant(ctx, restaurantID); err != nil {
				return err
			}
			return tx.InsertAdminAction(ctx, domain.AdminAction{
				AdminID:      sess.UserID,
				Action:       domain.AdminActionSetStatus,
				RestaurantID: restaurantID,
				FromStatus:   from,
				ToStatus:     status,
				At:           now,
			})
		})
		if !errors.Is(err, errOverrideRaced) {
			break
		}
	}
	if errors.Is(err, errOverrideRaced) {
		return domain.Restaurant{}, fmt.Errorf("%w: restaurant %d kept changing, retry", domain.ErrConflict, restaurantID)
	}
	if err != nil {
		return domain.Restaurant{}, err
	}

	log.Warn().
		Int64("admin_id", sess.UserID).
		Int64("restaurant_id", restaurantID).
		Str("from", string(from)).
		Str("to", string(status)).
		Msg("admin status override")

	if from == status {
		// audited, but nothing moved
		return out, nil
	}
	s.fx.emit(ctx, domain.TaskEvent{
		Type:         domain.EventRestaurantStatusOverride,
		RestaurantID: restaurantID,
		TaskID:       taskID,
		OldStatus:    from,
		NewStatus:    status,
		ActorID:      sess.UserID,
		At:           time.Now().UTC(),
	})
	return out, nil
}

// overrideTasks moves cur to status and fixes up the task that was, or
// becomes, its active claim. It returns the id of the task it touched, if any.
func overrideTasks(ctx context.Context, tx domain.Tx, cur domain.Restaurant, status domain.ReviewStatus, adminID int64, now time.Time) (int64, error) {
	next := domain.RestaurantState{Status: status, UpdatedAt: now}
	var touched int64

	switch status {
	case domain.StatusNotStarted:
		t, err := tx.LatestTask(ctx, cur.ID, domain.TaskPending)
		switch {
		case err == nil:
			if err := swapTask(ctx, tx, t, domain.TaskPending, domain.TaskState{Status: domain.TaskCancelled}); err != nil {
				return 0, err
			}
			touched = t.ID
		case !errors.Is(err, domain.ErrNotFound):
			return 0, err
		}

	case domain.StatusPending:
		if cur.ReviewStatus == domain.StatusCompleted {
			t, err := tx.LatestTask(ctx, cur.ID, domain.TaskCompleted)
			switch {
			case err == nil:
				if err := swapTask(ctx, tx, t, domain.TaskCompleted, domain.TaskState{Status: domain.TaskPending}); err != nil {
					return 0, err
				}
				touched = t.ID
			case !errors.Is(err, domain.ErrNotFound):
				return 0, err
			}
		}

	case domain.StatusCompleted:
		reviewer := adminID
		t, err := tx.LatestTask(ctx, cur.ID, domain.TaskPending)
		switch {
		case err == nil:
			if err := swapTask(ctx, tx, t, domain.TaskPending, domain.TaskState{Status: domain.TaskCompleted, ReviewDate: &now}); err != nil {
				return 0, err
			}
			reviewer, touched = t.UserID, t.ID
		case !errors.Is(err, domain.ErrNotFound):
			return 0, err
		}
		next.ReviewedBy = &reviewer
		next.Images = cur.Images
	}

	ok, err := tx.SwapRestaurantState(ctx, cur.ID, cur.ReviewStatus, next)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errOverrideRaced
	}
	return touched, nil
}

func swapTask(ctx context.Context, tx domain.Tx, t domain.Task, expected domain.TaskStatus, next domain.TaskState) error {
	ok, err := tx.SwapTaskState(ctx, t.ID, t.UserID, expected, next)
	if err != nil {
		return err
	}
	if !ok {
		return errOverrideRaced
	}
	return nil
}

func (s *TaskService) AdminDeleteRestaurant(ctx context.Context, sess domain.Session, restaurantID int64) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	now := time.Now().UTC()
	var from domain.ReviewStatus
	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		cur, err := tx.GetRestaurant(ctx, restaurantID)
		if err != nil {
			return err
		}
		from = cur.ReviewStatus
		if err := tx.DeleteRestaurant(ctx, restaurantID); err != nil {
			return err
		}
		return tx.InsertAdminAction(ctx, domain.AdminAction{
			AdminID:      sess.UserID,
			Action:       domain.AdminActionDelete,
			RestaurantID: restaurantID,
			FromStatus:   from,
			ToStatus:     from,
			At:           now,
		})
	})
	if err != nil {
		return err
	}

	log.Warn().
		Int64("admin_id", sess.UserID).
		Int64("restaurant_id", restaurantID).
		Str("from", string(from)).
		Msg("admin deleted restaurant")

	s.fx.emit(ctx, domain.TaskEvent{
		Type:         domain.EventRestaurantDeleted,
		RestaurantID: restaurantID,
		OldStatus:    from,
		ActorID:      sess.UserID,
		At:           now,
	})
	return nil
}
