package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"mealsfly_review/internal/app"
	"mealsfly_review/internal/domain"
	"mealsfly_review/internal/storage/memory"
	"mealsfly_review/internal/storage/sqlstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ---- fakes ----

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "h:" + pw, nil }
func (plainHasher) Compare(hash, pw string) error {
	if hash != "h:"+pw {
		return errors.New("mismatch")
	}
	return nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(id int64, role domain.Role) (string, error) {
	return fmt.Sprintf("%d:%s", id, role), nil
}

func (fakeTokens) Verify(tok string) (domain.Session, error) {
	var (
		id   int64
		role string
	)
	if _, err := fmt.Sscanf(strings.Replace(tok, ":", " ", 1), "%d %s", &id, &role); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{UserID: id, Role: domain.Role(role)}, nil
}

// sizeInspector answers from a ref -> WxH table; unknown refs fail.
type sizeInspector map[string][2]int

func (s sizeInspector) Dimensions(ctx context.Context, ref string) (int, int, error) {
	d, ok := s[ref]
	if !ok {
		return 0, 0, errors.New("unreachable")
	}
	return d[0], d[1], nil
}

type recorder struct {
	mu     sync.Mutex
	events []domain.TaskEvent
}

func (r *recorder) Publish(ctx context.Context, e domain.TaskEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// jsonCache stores JSON like the redis adapter does and records the keys
// that were fenced or deleted. TTLs are ignored.
type jsonCache struct {
	mu          sync.Mutex
	store       map[string][]byte
	invalidated []string
}

func (c *jsonCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *jsonCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	if v == nil {
		c.invalidated = append(c.invalidated, key)
	}
	return nil
}

func (c *jsonCache) SetNX(ctx context.Context, key string, v any, ttlSec int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.store[key]; ok {
		return false, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return true, nil
}

// expire drops key as if its TTL ran out.
func (c *jsonCache) expire(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

func (c *jsonCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.invalidated = append(c.invalidated, key)
	return nil
}

// ---- fixture ----

const (
	goodBanner = "https://img.example.com/banner.jpg"
	smallImage = "https://img.example.com/small.jpg"
)

type fixture struct {
	store   domain.Store
	cache   *jsonCache
	events  *recorder
	tasks   *app.TaskService
	reviews *app.ReviewService
	users   *app.UserService
	auth    *app.AuthService
	admin   domain.Session
}

func newFixture(t *testing.T) *fixture { return newFixtureOn(t, memory.New()) }

func openSQLite(t *testing.T) domain.Store {
	t.Helper()
	ctx := context.Background()
	db, err := sqlstore.Open(ctx, sqlstore.SQLite, filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlstore.Migrate(ctx, db, sqlstore.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlstore.New(db, sqlstore.SQLite)
}

// onEachStore runs test once on the in-memory store and once on SQLite.
func onEachStore(t *testing.T, test func(t *testing.T, f *fixture)) {
	t.Helper()
	stores := []struct {
		name string
		open func(t *testing.T) domain.Store
	}{
		{"memory", func(*testing.T) domain.Store { return memory.New() }},
		{"sqlite", openSQLite},
	}
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			test(t, newFixtureOn(t, s.open(t)))
		})
	}
}

func newFixtureOn(t *testing.T, store domain.Store) *fixture {
	t.Helper()
	f := &fixture{store: store, cache: &jsonCache{}, events: &recorder{}}
	insp := sizeInspector{goodBanner: {1280, 720}, smallImage: {640, 360}}
	f.tasks = app.NewTaskService(f.store, f.cache, f.events)
	f.reviews = app.NewReviewService(f.store, insp, f.cache, f.events)
	f.users = app.NewUserService(f.store, plainHasher{}, f.cache, f.events)
	f.auth = app.NewAuthService(f.store, plainHasher{}, fakeTokens{})

	a, _, err := f.users.EnsureAdmin(context.Background(), "Root", "root", "secret-pass")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	f.admin = domain.Session{UserID: a.ID, Role: domain.RoleAdmin}
	return f
}

func (f *fixture) restaurant(t *testing.T, name string, lat, lng float64) domain.Restaurant {
	t.Helper()
	r, err := f.tasks.AdminCreateRestaurant(context.Background(), f.admin, domain.NewRestaurant{
		Name: name, Phone: "080-1234", Address: name + " road", Location: domain.GeoPoint{Lat: lat, Lng: lng},
	})
	if err != nil {
		t.Fatalf("AdminCreateRestaurant: %v", err)
	}
	return r
}

// reviewer registers username and, when approved is set, has the admin approve it.
func (f *fixture) reviewer(t *testing.T, username string, approved bool) domain.Session {
	t.Helper()
	ctx := context.Background()
	u, err := f.users.Register(ctx, strings.ToUpper(username[:1])+username[1:], username, "password1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if approved {
		if _, err := f.users.ApproveUser(ctx, f.admin, u.ID); err != nil {
			t.Fatalf("ApproveUser: %v", err)
		}
	}
	return domain.Session{UserID: u.ID, Role: domain.RoleUser}
}

func validImages() domain.ReviewImages {
	return domain.ReviewImages{
		FSSAI:  "https://img.example.com/fssai.jpg",
		Menu:   "https://img.example.com/menu.jpg",
		Banner: goodBanner,
	}
}
