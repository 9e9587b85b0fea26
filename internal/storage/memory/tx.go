package memory

import (
	"context"
	"fmt"

	"mealsfly_review/internal/domain"
)

type tx struct{ st *state }

func (t *tx) GetRestaurant(ctx context.Context, id int64) (domain.Restaurant, error) {
	return t.st.getRestaurant(id)
}

func (t *tx) SwapRestaurantState(ctx context.Context, id int64, expected domain.ReviewStatus, next domain.RestaurantState) (bool, error) {
	r, ok := t.st.restaurants[id]
	if !ok || r.ReviewStatus != expected {
		return false, nil
	}
	r.ReviewStatus = next.Status
	r.ReviewedBy = nil
	if next.ReviewedBy != nil {
		v := *next.ReviewedBy
		r.ReviewedBy = &v
	}
	r.Images = nil
	if next.Images != nil {
		v := *next.Images
		r.Images = &v
	}
	r.UpdatedAt = next.UpdatedAt
	t.st.restaurants[id] = r
	return true, nil
}

func (t *tx) DeleteRestaurant(ctx context.Context, id int64) error {
	if _, ok := t.st.restaurants[id]; !ok {
		return fmt.Errorf("%w: restaurant %d", domain.ErrNotFound, id)
	}
	delete(t.st.restaurants, id)
	for tid, task := range t.st.tasks {
		if task.RestaurantID == id {
			delete(t.st.tasks, tid)
		}
	}
	return nil
}

func (t *tx) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return t.st.getTask(id)
}

func (t *tx) InsertTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	if _, ok := t.st.restaurants[task.RestaurantID]; !ok {
		return domain.Task{}, fmt.Errorf("%w: restaurant %d", domain.ErrNotFound, task.RestaurantID)
	}
	task.ID = t.st.next("task")
	task.Restaurant = nil
	t.st.tasks[task.ID] = copyTask(task)
	return task, nil
}

func (t *tx) LatestTask(ctx context.Context, restaurantID int64, status domain.TaskStatus) (domain.Task, error) {
	var found []domain.Task
	for _, task := range t.st.tasks {
		if task.RestaurantID == restaurantID && task.Status == status {
			found = append(found, task)
		}
	}
	if len(found) == 0 {
		return domain.Task{}, fmt.Errorf("%w: no %s task for restaurant %d", domain.ErrNotFound, status, restaurantID)
	}
	sortTasks(found)
	return copyTask(found[0]), nil
}

func (t *tx) SwapTaskState(ctx context.Context, id, ownerID int64, expected domain.TaskStatus, next domain.TaskState) (bool, error) {
	task, ok := t.st.tasks[id]
	if !ok || task.UserID != ownerID || task.Status != expected {
		return false, nil
	}
	task.Status = next.Status
	task.ReviewDate = nil
	if next.ReviewDate != nil {
		v := *next.ReviewDate
		task.ReviewDate = &v
	}
	t.st.tasks[id] = task
	return true, nil
}

func (t *tx) ListUserTasks(ctx context.Context, userID int64, status domain.TaskStatus) ([]domain.Task, error) {
	var out []domain.Task
	for _, task := range t.st.tasks {
		if task.UserID == userID && task.Status == status {
			out = append(out, copyTask(task))
		}
	}
	sortTasks(out)
	return out, nil
}

func (t *tx) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return t.st.getUser(id)
}

func (t *tx) DeleteUser(ctx context.Context, id int64) error {
	if _, ok := t.st.users[id]; !ok {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	delete(t.st.users, id)
	for tid, task := range t.st.tasks {
		if task.UserID == id {
			delete(t.st.tasks, tid)
		}
	}
	return nil
}

func (t *tx) InsertAdminAction(ctx context.Context, a domain.AdminAction) error {
	a.ID = t.st.next("action")
	t.st.actions = append(t.st.actions, a)
	return nil
}
