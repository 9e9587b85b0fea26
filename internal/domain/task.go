package domain

import "time"

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	// TaskCancelled is set when an admin moves the restaurant away from pending.
	TaskCancelled TaskStatus = "cancelled"
)

// Task is one reviewer's claim on one restaurant.
type Task struct {
	ID           int64
	RestaurantID int64
	UserID       int64
	Status       TaskStatus
	AssignedAt   time.Time
	ReviewDate   *time.Time
	Restaurant   *RestaurantSummary
}

// TaskState is what a task status swap writes.
type TaskState struct {
	Status     TaskStatus
	ReviewDate *time.Time
}

type TaskFilter struct {
	UserID int64
	Status *TaskStatus
}
