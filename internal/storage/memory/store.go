// Package memory is an in-process domain.Store used by tests and by
// STORE_DRIVER=memory. Transactions run under a single mutex against a
// copy of the state that replaces the live one only on success.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mealsfly_review/internal/domain"
)

type state struct {
	seq         map[string]int64
	restaurants map[int64]domain.Restaurant
	tasks       map[int64]domain.Task
	users       map[int64]domain.User
	actions     []domain.AdminAction
}

func newState() *state {
	return &state{
		seq:         map[string]int64{},
		restaurants: map[int64]domain.Restaurant{},
		tasks:       map[int64]domain.Task{},
		users:       map[int64]domain.User{},
	}
}

// clone is shallow per entry; stored values are never mutated in place.
func (s *state) clone() *state {
	out := &state{
		seq:         make(map[string]int64, len(s.seq)),
		restaurants: make(map[int64]domain.Restaurant, len(s.restaurants)),
		tasks:       make(map[int64]domain.Task, len(s.tasks)),
		users:       make(map[int64]domain.User, len(s.users)),
		actions:     append([]domain.AdminAction(nil), s.actions...),
	}
	for k, v := range s.seq {
		out.seq[k] = v
	}
	for k, v := range s.restaurants {
		out.restaurants[k] = v
	}
	for k, v := range s.tasks {
		out.tasks[k] = v
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	return out
}

func (s *state) next(kind string) int64 {
	s.seq[kind]++
	return s.seq[kind]
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store { return &Store{st: newState()} }

var _ domain.Store = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

/********** restaurants **********/

func (s *Store) CreateRestaurant(ctx context.Context, n domain.NewRestaurant, now time.Time) (domain.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ExternalID != nil {
		if _, ok := s.st.byExternalID(*n.ExternalID); ok {
			return domain.Restaurant{}, fmt.Errorf("%w: external id %q already imported", domain.ErrConflict, *n.ExternalID)
		}
	}
	r := s.st.insertRestaurant(n, now)
	return copyRestaurant(r), nil
}

func (s *Store) UpsertRestaurantByExternalID(ctx context.Context, n domain.NewRestaurant, now time.Time) (domain.Restaurant, bool, error) {
	if n.ExternalID == nil || *n.ExternalID == "" {
		return domain.Restaurant{}, false, fmt.Errorf("%w: external id is required for upsert", domain.ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.st.byExternalID(*n.ExternalID); ok {
		cur.Name, cur.Phone, cur.Address, cur.Location = n.Name, n.Phone, n.Address, n.Location
		cur.UpdatedAt = now
		s.st.restaurants[cur.ID] = cur
		return copyRestaurant(cur), false, nil
	}
	return copyRestaurant(s.st.insertRestaurant(n, now)), true, nil
}

func (st *state) insertRestaurant(n domain.NewRestaurant, now time.Time) domain.Restaurant {
	r := domain.Restaurant{
		ID:           st.next("restaurant"),
		ExternalID:   copyStr(n.ExternalID),
		Name:         n.Name,
		Phone:        n.Phone,
		Address:      n.Address,
		Location:     n.Location,
		ReviewStatus: domain.StatusNotStarted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	st.restaurants[r.ID] = r
	return r
}

func (st *state) byExternalID(ext string) (domain.Restaurant, bool) {
	for _, r := range st.restaurants {
		if r.ExternalID != nil && *r.ExternalID == ext {
			return r, true
		}
	}
	return domain.Restaurant{}, false
}

func (s *Store) GetRestaurant(ctx context.Context, id int64) (domain.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getRestaurant(id)
}

func (st *state) getRestaurant(id int64) (domain.Restaurant, error) {
	r, ok := st.restaurants[id]
	if !ok {
		return domain.Restaurant{}, fmt.Errorf("%w: restaurant %d", domain.ErrNotFound, id)
	}
	return copyRestaurant(r), nil
}

func (s *Store) ListRestaurants(ctx context.Context, f domain.RestaurantFilter) ([]domain.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Restaurant, 0, len(s.st.restaurants))
	for _, r := range s.st.restaurants {
		if f.Status != nil && r.ReviewStatus != *f.Status {
			continue
		}
		out = append(out, copyRestaurant(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListAdminActions(ctx context.Context, restaurantID int64) ([]domain.AdminAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AdminAction
	for _, a := range s.st.actions {
		if a.RestaurantID == restaurantID {
			out = append(out, a)
		}
	}
	return out, nil
}

/********** tasks **********/

func (s *Store) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getTask(id)
}

func (st *state) getTask(id int64) (domain.Task, error) {
	t, ok := st.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: task %d", domain.ErrNotFound, id)
	}
	return copyTask(t), nil
}

func (s *Store) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Task
	for _, t := range s.st.tasks {
		if t.UserID != f.UserID || (f.Status != nil && t.Status != *f.Status) {
			continue
		}
		t = copyTask(t)
		if r, ok := s.st.restaurants[t.RestaurantID]; ok {
			sum := r.Summary()
			t.Restaurant = &sum
		}
		out = append(out, t)
	}
	sortTasks(out)
	return out, nil
}

func sortTasks(ts []domain.Task) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].AssignedAt.Equal(ts[j].AssignedAt) {
			return ts[i].AssignedAt.After(ts[j].AssignedAt)
		}
		return ts[i].ID > ts[j].ID
	})
}

/********** users **********/

func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.st.users {
		if strings.EqualFold(cur.Username, u.Username) {
			return domain.User{}, fmt.Errorf("%w: username %q is taken", domain.ErrConflict, u.Username)
		}
	}
	u.ID = s.st.next("user")
	u.TasksCompleted = 0
	s.st.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getUser(id)
}

func (st *state) getUser(id int64) (domain.User, error) {
	u, ok := st.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("%w: user %q", domain.ErrNotFound, username)
}

func (s *Store) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := map[int64]int{}
	for _, t := range s.st.tasks {
		if t.Status == domain.TaskCompleted {
			done[t.UserID]++
		}
	}
	var out []domain.User
	for _, u := range s.st.users {
		if role != "" && u.Role != role {
			continue
		}
		u.TasksCompleted = done[u.ID]
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ApproveUser(ctx context.Context, id int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.st.getUser(id)
	if err != nil {
		return domain.User{}, err
	}
	u.Approved = true
	s.st.users[id] = u
	return u, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.st.getUser(id)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	s.st.users[id] = u
	return nil
}

/********** copies **********/

func copyStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyRestaurant(r domain.Restaurant) domain.Restaurant {
	r.ExternalID = copyStr(r.ExternalID)
	if r.ReviewedBy != nil {
		v := *r.ReviewedBy
		r.ReviewedBy = &v
	}
	if r.Images != nil {
		v := *r.Images
		r.Images = &v
	}
	return r
}

func copyTask(t domain.Task) domain.Task {
	if t.ReviewDate != nil {
		v := *t.ReviewDate
		t.ReviewDate = &v
	}
	if t.Restaurant != nil {
		v := *t.Restaurant
		t.Restaurant = &v
	}
	return t
}
