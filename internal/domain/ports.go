package domain

import (
	"context"
	"io"
	"time"
)

type RestaurantRepository interface {
	// Write paths
	CreateRestaurant(ctx context.Context, n NewRestaurant, now time.Time) (Restaurant, error)
	UpsertRestaurantByExternalID(ctx context.Context, n NewRestaurant, now time.Time) (r Restaurant, created bool, err error)

	// Read paths
	GetRestaurant(ctx context.Context, id int64) (Restaurant, error)
	ListRestaurants(ctx context.Context, f RestaurantFilter) ([]Restaurant, error)
	ListAdminActions(ctx context.Context, restaurantID int64) ([]AdminAction, error)
}

type TaskRepository interface {
	GetTask(ctx context.Context, id int64) (Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]Task, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context, role Role) ([]User, error)
	ApproveUser(ctx context.Context, id int64) (User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// Tx is the set of primitives a state transition may combine. Swap* methods
// are compare-and-set: they report false, without error, when the guard no
// longer matches.
type Tx interface {
	GetRestaurant(ctx context.Context, id int64) (Restaurant, error)
	SwapRestaurantState(ctx context.Context, id int64, expected ReviewStatus, next RestaurantState) (bool, error)
	DeleteRestaurant(ctx context.Context, id int64) error

	GetTask(ctx context.Context, id int64) (Task, error)
	InsertTask(ctx context.Context, t Task) (Task, error)
	// LatestTask returns the newest task of the restaurant in the given status, or ErrNotFound.
	LatestTask(ctx context.Context, restaurantID int64, status TaskStatus) (Task, error)
	SwapTaskState(ctx context.Context, id, ownerID int64, expected TaskStatus, next TaskState) (bool, error)
	ListUserTasks(ctx context.Context, userID int64, status TaskStatus) ([]Task, error)

	GetUser(ctx context.Context, id int64) (User, error)
	DeleteUser(ctx context.Context, id int64) error

	InsertAdminAction(ctx context.Context, a AdminAction) error
}

type Transactor interface {
	// WithinTx runs fn atomically; any error rolls every write back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type Store interface {
	RestaurantRepository
	TaskRepository
	UserRepository
	Transactor
}

type DirectoryClient interface {
	ListRestaurantIDs(ctx context.Context) ([]string, error)
	GetRestaurant(ctx context.Context, id string) (map[string]any, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	// SetNX stores v only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, v any, ttlSec int) (bool, error)
	Del(ctx context.Context, key string) error
}

// ImageInspector reports the pixel size of the image behind ref.
type ImageInspector interface {
	Dimensions(ctx context.Context, ref string) (width, height int, err error)
}

type ImageUploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, e TaskEvent) error
}

type TokenIssuer interface {
	Issue(userID int64, role Role) (string, error)
	Verify(token string) (Session, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

