package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReviewStatus is the lifecycle state of a restaurant's review.
type ReviewStatus string

const (
	StatusNotStarted ReviewStatus = "not_started"
	StatusPending    ReviewStatus = "pending"
	StatusCompleted  ReviewStatus = "completed"
)

var reviewStatuses = map[string]ReviewStatus{
	string(StatusNotStarted): StatusNotStarted,
	string(StatusPending):    StatusPending,
	string(StatusCompleted):  StatusCompleted,
}

// ParseReviewStatus accepts only the three known statuses (case-insensitive, trimmed).
func ParseReviewStatus(s string) (ReviewStatus, error) {
	if st, ok := reviewStatuses[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown review status %q", ErrInvalid, s)
}

func (s ReviewStatus) Valid() bool {
	_, ok := reviewStatuses[string(s)]
	return ok
}

type ReviewImages struct {
	FSSAI  string
	Menu   string
	Banner string
}

type Restaurant struct {
	ID           int64
	ExternalID   *string
	Name         string
	Phone        string
	Address      string
	Location     GeoPoint
	ReviewStatus ReviewStatus
	ReviewedBy   *int64
	Images       *ReviewImages
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CheckInvariants reports a broken reviewer/status pairing.
func (r Restaurant) CheckInvariants() error {
	if !r.ReviewStatus.Valid() {
		return fmt.Errorf("restaurant %d: invalid status %q", r.ID, r.ReviewStatus)
	}
	completed := r.ReviewStatus == StatusCompleted
	if completed != (r.ReviewedBy != nil) {
		return fmt.Errorf("restaurant %d: reviewedBy set=%t with status %s", r.ID, r.ReviewedBy != nil, r.ReviewStatus)
	}
	if r.Images != nil && !completed {
		return fmt.Errorf("restaurant %d: images present with status %s", r.ID, r.ReviewStatus)
	}
	return nil
}

// RestaurantState is the review-related part of a restaurant that status swaps write.
type RestaurantState struct {
	Status     ReviewStatus
	ReviewedBy *int64
	Images     *ReviewImages
	UpdatedAt  time.Time
}

type NewRestaurant struct {
	ExternalID *string
	Name       string
	Phone      string
	Address    string
	Location   GeoPoint
}

func (n NewRestaurant) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("%w: restaurant name is required", ErrInvalid)
	}
	if !n.Location.Valid() {
		return fmt.Errorf("%w: coordinates out of range (lat %.6f, lng %.6f)", ErrInvalid, n.Location.Lat, n.Location.Lng)
	}
	return nil
}

type RestaurantFilter struct {
	Status *ReviewStatus
}

// RestaurantSummary is the restaurant snapshot attached to task listings.
type RestaurantSummary struct {
	ID           int64
	Name         string
	Phone        string
	Address      string
	Location     GeoPoint
	ReviewStatus ReviewStatus
}

func (r Restaurant) Summary() RestaurantSummary {
	return RestaurantSummary{
		ID:           r.ID,
		Name:         r.Name,
		Phone:        r.Phone,
		Address:      r.Address,
		Location:     r.Location,
		ReviewStatus: r.ReviewStatus,
	}
}
