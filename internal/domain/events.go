package domain

import "time"

const (
	EventTaskAssigned             = "task.assigned"
	EventTaskCompleted            = "task.completed"
	EventRestaurantStatusOverride = "restaurant.status_overridden"
	EventRestaurantDeleted        = "restaurant.deleted"
	EventTaskReleased             = "task.released"
)

type TaskEvent struct {
	ID           string
	Type         string
	RestaurantID int64
	TaskID       int64
	UserID       int64
	OldStatus    ReviewStatus
	NewStatus    ReviewStatus
	ActorID      int64
	At           time.Time
}

const (
	AdminActionSetStatus = "set_status"
	AdminActionDelete    = "delete_restaurant"
)

// AdminAction is the audit record of an administrative override.
type AdminAction struct {
	ID           int64
	AdminID      int64
	Action       string
	RestaurantID int64
	FromStatus   ReviewStatus
	ToStatus     ReviewStatus
	At           time.Time
}
