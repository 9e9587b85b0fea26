// Package storetest holds the behaviour every domain.Store must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"mealsfly_review/internal/domain"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func pstr(s string) *string { return &s }

func mustRestaurant(t *testing.T, s domain.Store, name string) domain.Restaurant {
	t.Helper()
	r, err := s.CreateRestaurant(context.Background(), domain.NewRestaurant{
		Name:     name,
		Phone:    "+91 90000 00000",
		Address:  name + " street",
		Location: domain.GeoPoint{Lat: 12.97, Lng: 77.59},
	}, t0)
	if err != nil {
		t.Fatalf("CreateRestaurant: %v", err)
	}
	return r
}

func mustUser(t *testing.T, s domain.Store, username string, role domain.Role) domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), domain.User{
		Name: username, Username: username, PasswordHash: "x", Role: role, CreatedAt: t0,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

// assign performs the claim transition the way the task service does.
func assign(ctx context.Context, s domain.Store, rid, uid int64) (domain.Task, error) {
	var out domain.Task
	err := s.WithinTx(ctx, func(tx domain.Tx) error {
		ok, err := tx.SwapRestaurantState(ctx, rid, domain.StatusNotStarted, domain.RestaurantState{Status: domain.StatusPending, UpdatedAt: t0})
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConflict
		}
		out, err = tx.InsertTask(ctx, domain.Task{RestaurantID: rid, UserID: uid, Status: domain.TaskPending, AssignedAt: t0})
		return err
	})
	return out, err
}

// Run exercises newStore with the shared contract. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) domain.Store) {
	ctx := context.Background()

	t.Run("restaurant create and get", func(t *testing.T) {
		s := newStore(t)
		r := mustRestaurant(t, s, "Dosa Point")
		if r.ID == 0 || r.ReviewStatus != domain.StatusNotStarted || r.ReviewedBy != nil || r.Images != nil {
			t.Fatalf("unexpected new restaurant: %+v", r)
		}
		got, err := s.GetRestaurant(ctx, r.ID)
		if err != nil {
			t.Fatalf("GetRestaurant: %v", err)
		}
		if got.Name != "Dosa Point" || got.Location != r.Location {
			t.Fatalf("round trip mismatch: %+v", got)
		}
		if _, err := s.GetRestaurant(ctx, r.ID+100); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("upsert by external id keeps review state", func(t *testing.T) {
		s := newStore(t)
		n := domain.NewRestaurant{ExternalID: pstr("ext-1"), Name: "Old", Address: "a", Location: domain.GeoPoint{Lat: 1, Lng: 2}}
		r, created, err := s.UpsertRestaurantByExternalID(ctx, n, t0)
		if err != nil || !created {
			t.Fatalf("first upsert: created=%v err=%v", created, err)
		}
		u := mustUser(t, s, "rev", domain.RoleUser)
		if _, err := assign(ctx, s, r.ID, u.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
		n.Name = "New"
		r2, created, err := s.UpsertRestaurantByExternalID(ctx, n, t0.Add(time.Hour))
		if err != nil || created {
			t.Fatalf("second upsert: created=%v err=%v", created, err)
		}
		if r2.ID != r.ID || r2.Name != "New" || r2.ReviewStatus != domain.StatusPending {
			t.Fatalf("unexpected refreshed restaurant: %+v", r2)
		}
	})

	t.Run("assign is compare-and-set", func(t *testing.T) {
		s := newStore(t)
		r := mustRestaurant(t, s, "Idli House")
		a := mustUser(t, s, "alice", domain.RoleUser)
		b := mustUser(t, s, "bob", domain.RoleUser)
		task, err := assign(ctx, s, r.ID, a.ID)
		if err != nil {
			t.Fatalf("assign alice: %v", err)
		}
		if _, err := assign(ctx, s, r.ID, b.ID); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("second assign: want ErrConflict, got %v", err)
		}
		pending := domain.TaskPending
		bobs, err := s.ListTasks(ctx, domain.TaskFilter{UserID: b.ID, Status: &pending})
		if err != nil || len(bobs) != 0 {
			t.Fatalf("bob should hold nothing: %v %v", bobs, err)
		}
		alices, err := s.ListTasks(ctx, domain.TaskFilter{UserID: a.ID, Status: &pending})
		if err != nil || len(alices) != 1 {
			t.Fatalf("alice tasks: %v %v", alices, err)
		}
		got := alices[0]
		if got.ID != task.ID || got.Restaurant == nil || got.Restaurant.Name != "Idli House" || got.Restaurant.ReviewStatus != domain.StatusPending {
			t.Fatalf("unexpected listed task: %+v", got)
		}
	})

	t.Run("task swap checks owner and status", func(t *testing.T) {
		s := newStore(t)
		r := mustRestaurant(t, s, "Vada Corner")
		a := mustUser(t, s, "alice", domain.RoleUser)
		b := mustUser(t, s, "bob", domain.RoleUser)
		task, err := assign(ctx, s, r.ID, a.ID)
		if err != nil {
			t.Fatalf("assign: %v", err)
		}
		done := t0.Add(time.Hour)
		images := &domain.ReviewImages{FSSAI: "https://img/f.jpg", Menu: "https://img/m.jpg", Banner: "https://img/b.jpg"}
		err = s.WithinTx(ctx, func(tx domain.Tx) error {
			if ok, err := tx.SwapTaskState(ctx, task.ID, b.ID, domain.TaskPending, domain.TaskState{Status: domain.TaskCompleted, ReviewDate: &done}); err != nil || ok {
				t.Errorf("foreign owner swap: ok=%v err=%v", ok, err)
			}
			ok, err := tx.SwapTaskState(ctx, task.ID, a.ID, domain.TaskPending, domain.TaskState{Status: domain.TaskCompleted, ReviewDate: &done})
			if err != nil || !ok {
				t.Errorf("owner swap: ok=%v err=%v", ok, err)
			}
			ok, err = tx.SwapRestaurantState(ctx, r.ID, domain.StatusPending, domain.RestaurantState{
				Status: domain.StatusCompleted, ReviewedBy: &a.ID, Images: images, UpdatedAt: done,
			})
			if err != nil || !ok {
				t.Errorf("restaurant swap: ok=%v err=%v", ok, err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("tx: %v", err)
		}
		got, _ := s.GetRestaurant(ctx, r.ID)
		if got.ReviewStatus != domain.StatusCompleted || got.ReviewedBy == nil || *got.ReviewedBy != a.ID || got.Images == nil || *got.Images != *images {
			t.Fatalf("unexpected completed restaurant: %+v", got)
		}
		if err := got.CheckInvariants(); err != nil {
			t.Fatal(err)
		}
		gt, _ := s.GetTask(ctx, task.ID)
		if gt.Status != domain.TaskCompleted || gt.ReviewDate == nil {
			t.Fatalf("unexpected completed task: %+v", gt)
		}
		users, err := s.ListUsers(ctx, domain.RoleUser)
		if err != nil {
			t.Fatalf("ListUsers: %v", err)
		}
		for _, u := range users {
			if u.ID == a.ID && u.TasksCompleted != 1 {
				t.Fatalf("alice completed count = %d", u.TasksCompleted)
			}
		}
	})

	t.Run("failed transaction rolls back", func(t *testing.T) {
		s := newStore(t)
		r := mustRestaurant(t, s, "Rollback Cafe")
		u := mustUser(t, s, "carol", domain.RoleUser)
		boom := errors.New("boom")
		err := s.WithinTx(ctx, func(tx domain.Tx) error {
			if _, err := tx.SwapRestaurantState(ctx, r.ID, domain.StatusNotStarted, domain.RestaurantState{Status: domain.StatusPending, UpdatedAt: t0}); err != nil {
				return err
			}
			if _, err := tx.InsertTask(ctx, domain.Task{RestaurantID: r.ID, UserID: u.ID, Status: domain.TaskPending, AssignedAt: t0}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("want boom, got %v", err)
		}
		got, _ := s.GetRestaurant(ctx, r.ID)
		if got.ReviewStatus != domain.StatusNotStarted {
			t.Fatalf("status leaked out of rolled back tx: %s", got.ReviewStatus)
		}
		tasks, _ := s.ListTasks(ctx, domain.TaskFilter{UserID: u.ID})
		if len(tasks) != 0 {
			t.Fatalf("task leaked out of rolled back tx: %+v", tasks)
		}
	})

	t.Run("latest task and audit", func(t *testing.T) {
		s := newStore(t)
		r := mustRestaurant(t, s, "Audit Dhaba")
		u := mustUser(t, s, "dave", domain.RoleUser)
		admin := mustUser(t, s, "root", domain.RoleAdmin)
		task, err := assign(ctx, s, r.ID, u.ID)
		if err != nil {
			t.Fatalf("assign: %v", err)
		}
		err = s.WithinTx(ctx, func(tx domain.Tx) error {
			latest, err := tx.LatestTask(ctx, r.ID, domain.TaskPending)
			if err != nil {
				return err
			}
			if latest.ID != task.ID {
				t.Errorf("latest pending = %d, want %d", latest.ID, task.ID)
			}
			if _, err := tx.LatestTask(ctx, r.ID, domain.TaskCompleted); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("want ErrNotFound for completed, got %v", err)
			}
			return tx.InsertAdminAction(ctx, domain.AdminAction{
				AdminID: admin.ID, Action: domain.AdminActionSetStatus, RestaurantID: r.ID,
				FromStatus: domain.StatusPending, ToStatus: domain.StatusNotStarted, At: t0,
			})
		})
		if err != nil {
			t.Fatalf("tx: %v", err)
		}
		acts, err := s.ListAdminActions(ctx, r.ID)
		if err != nil || len(acts) != 1 || acts[0].AdminID != admin.ID || acts[0].ToStatus != domain.StatusNotStarted {
			t.Fatalf("unexpected audit: %+v err=%v", acts, err)
		}
	})

	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		u := mustUser(t, s, "Eve", domain.RoleUser)
		if _, err := s.CreateUser(ctx, domain.User{Name: "x", Username: "Eve", PasswordHash: "y", Role: domain.RoleUser, CreatedAt: t0}); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("duplicate username: want ErrConflict, got %v", err)
		}
		got, err := s.GetUserByUsername(ctx, "eve")
		if err != nil || got.ID != u.ID {
			t.Fatalf("case-insensitive lookup: %+v %v", got, err)
		}
		if got.Approved {
			t.Fatalf("new user should not be approved")
		}
		ap, err := s.ApproveUser(ctx, u.ID)
		if err != nil || !ap.Approved {
			t.Fatalf("approve: %+v %v", ap, err)
		}
		if _, err := s.ApproveUser(ctx, u.ID); err != nil {
			t.Fatalf("approving twice should be idempotent: %v", err)
		}
		if err := s.UpdatePasswordHash(ctx, u.ID, "new-hash"); err != nil {
			t.Fatalf("UpdatePasswordHash: %v", err)
		}
		got, _ = s.GetUser(ctx, u.ID)
		if got.PasswordHash != "new-hash" {
			t.Fatalf("hash not updated")
		}
		if _, err := s.ApproveUser(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("approve unknown: want ErrNotFound, got %v", err)
		}
	})

	t.Run("deletes cascade to tasks", func(t *testing.T) {
		s := newStore(t)
		r1 := mustRestaurant(t, s, "One")
		r2 := mustRestaurant(t, s, "Two")
		u := mustUser(t, s, "frank", domain.RoleUser)
		if _, err := assign(ctx, s, r1.ID, u.ID); err != nil {
			t.Fatalf("assign r1: %v", err)
		}
		t2, err := assign(ctx, s, r2.ID, u.ID)
		if err != nil {
			t.Fatalf("assign r2: %v", err)
		}
		if err := s.WithinTx(ctx, func(tx domain.Tx) error { return tx.DeleteRestaurant(ctx, r1.ID) }); err != nil {
			t.Fatalf("DeleteRestaurant: %v", err)
		}
		tasks, _ := s.ListTasks(ctx, domain.TaskFilter{UserID: u.ID})
		if len(tasks) != 1 || tasks[0].ID != t2.ID {
			t.Fatalf("tasks after restaurant delete: %+v", tasks)
		}
		if err := s.WithinTx(ctx, func(tx domain.Tx) error { return tx.DeleteUser(ctx, u.ID) }); err != nil {
			t.Fatalf("DeleteUser: %v", err)
		}
		if _, err := s.GetTask(ctx, t2.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("task should go with its user, got %v", err)
		}
		err = s.WithinTx(ctx, func(tx domain.Tx) error { return tx.DeleteUser(ctx, u.ID) })
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("second delete: want ErrNotFound, got %v", err)
		}
	})

	t.Run("list by status", func(t *testing.T) {
		s := newStore(t)
		a := mustRestaurant(t, s, "A")
		mustRestaurant(t, s, "B")
		u := mustUser(t, s, "gina", domain.RoleUser)
		if _, err := assign(ctx, s, a.ID, u.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
		ns := domain.StatusNotStarted
		got, err := s.ListRestaurants(ctx, domain.RestaurantFilter{Status: &ns})
		if err != nil || len(got) != 1 || got[0].Name != "B" {
			t.Fatalf("not_started listing: %+v %v", got, err)
		}
		all, _ := s.ListRestaurants(ctx, domain.RestaurantFilter{})
		if len(all) != 2 || all[0].ID > all[1].ID {
			t.Fatalf("full listing: %+v", all)
		}
	})
}
