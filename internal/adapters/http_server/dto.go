package httpserver

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"mealsfly_review/internal/app"
	"mealsfly_review/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationErrors maps json field names to the failed rule.
func validationErrors(err error) map[string]string {
	out := map[string]string{}
	if ves, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ves {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}

/********** requests **********/

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

type createRestaurantRequest struct {
	ExternalID *string  `json:"externalId" validate:"omitempty,max=64"`
	Name       string   `json:"name" validate:"required,max=200"`
	Phone      string   `json:"phone" validate:"max=32"`
	Address    string   `json:"address" validate:"max=500"`
	Lat        *float64 `json:"lat" validate:"required,latitude"`
	Lng        *float64 `json:"lng" validate:"required,longitude"`
}

func (r createRestaurantRequest) toDomain() domain.NewRestaurant {
	return domain.NewRestaurant{
		ExternalID: r.ExternalID,
		Name:       r.Name,
		Phone:      r.Phone,
		Address:    r.Address,
		Location:   domain.GeoPoint{Lat: *r.Lat, Lng: *r.Lng},
	}
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Image fields are checked by ReviewService after ownership and task status.
type submitReviewRequest struct {
	FSSAIImage  string `json:"fssaiImage"`
	MenuImage   string `json:"menuImage"`
	BannerImage string `json:"bannerImage"`
}

/********** responses **********/

type locationDTO struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lng, lat]
}

func toLocation(p domain.GeoPoint) locationDTO {
	return locationDTO{Type: "Point", Coordinates: [2]float64{p.Lng, p.Lat}}
}

type imagesDTO struct {
	FSSAI  string `json:"fssai"`
	Menu   string `json:"menu"`
	Banner string `json:"banner"`
}

type restaurantDTO struct {
	ID           int64       `json:"id"`
	ExternalID   *string     `json:"externalId,omitempty"`
	Name         string      `json:"name"`
	Phone        string      `json:"phone"`
	Address      string      `json:"address"`
	Location     locationDTO `json:"location"`
	ReviewStatus string      `json:"reviewStatus"`
	ReviewedBy   *int64      `json:"reviewedBy,omitempty"`
	Images       *imagesDTO  `json:"images,omitempty"`
	DistanceKm   *float64    `json:"distanceKm,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func toRestaurant(r domain.Restaurant) restaurantDTO {
	out := restaurantDTO{
		ID:           r.ID,
		ExternalID:   r.ExternalID,
		Name:         r.Name,
		Phone:        r.Phone,
		Address:      r.Address,
		Location:     toLocation(r.Location),
		ReviewStatus: string(r.ReviewStatus),
		ReviewedBy:   r.ReviewedBy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Images != nil {
		out.Images = &imagesDTO{FSSAI: r.Images.FSSAI, Menu: r.Images.Menu, Banner: r.Images.Banner}
	}
	return out
}

func toRestaurants(rs []domain.Restaurant) []restaurantDTO {
	out := make([]restaurantDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRestaurant(r))
	}
	return out
}

func toAssignables(as []app.Assignable) []restaurantDTO {
	out := make([]restaurantDTO, 0, len(as))
	for _, a := range as {
		d := toRestaurant(a.Restaurant)
		d.DistanceKm = a.DistanceKm
		out = append(out, d)
	}
	return out
}

type restaurantSummaryDTO struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Phone        string      `json:"phone"`
	Address      string      `json:"address"`
	Location     locationDTO `json:"location"`
	ReviewStatus string      `json:"reviewStatus"`
}

type taskDTO struct {
	ID           int64                 `json:"id"`
	RestaurantID int64                 `json:"restaurantId"`
	UserID       int64                 `json:"userId"`
	Status       string                `json:"status"`
	AssignedAt   time.Time             `json:"assignedAt"`
	ReviewDate   *time.Time            `json:"reviewDate,omitempty"`
	Restaurant   *restaurantSummaryDTO `json:"restaurant,omitempty"`
}

func toTask(t domain.Task) taskDTO {
	out := taskDTO{
		ID:           t.ID,
		RestaurantID: t.RestaurantID,
		UserID:       t.UserID,
		Status:       string(t.Status),
		AssignedAt:   t.AssignedAt,
		ReviewDate:   t.ReviewDate,
	}
	if s := t.Restaurant; s != nil {
		out.Restaurant = &restaurantSummaryDTO{
			ID:           s.ID,
			Name:         s.Name,
			Phone:        s.Phone,
			Address:      s.Address,
			Location:     toLocation(s.Location),
			ReviewStatus: string(s.ReviewStatus),
		}
	}
	return out
}

func toTasks(ts []domain.Task) []taskDTO {
	out := make([]taskDTO, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTask(t))
	}
	return out
}

type userDTO struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	Role           string    `json:"role"`
	Approved       bool      `json:"approved"`
	CreatedAt      time.Time `json:"createdAt"`
	TasksCompleted int       `json:"tasksCompleted"`
}

func toUser(u domain.User) userDTO {
	return userDTO{
		ID:             u.ID,
		Name:           u.Name,
		Username:       u.Username,
		Role:           string(u.Role),
		Approved:       u.Approved,
		CreatedAt:      u.CreatedAt,
		TasksCompleted: u.TasksCompleted,
	}
}

func toUsers(us []domain.User) []userDTO {
	out := make([]userDTO, 0, len(us))
	for _, u := range us {
		out = append(out, toUser(u))
	}
	return out
}

type adminActionDTO struct {
	ID           int64     `json:"id"`
	AdminID      int64     `json:"adminId"`
	Action       string    `json:"action"`
	RestaurantID int64     `json:"restaurantId"`
	FromStatus   string    `json:"fromStatus"`
	ToStatus     string    `json:"toStatus,omitempty"`
	At           time.Time `json:"at"`
}

func toAdminActions(as []domain.AdminAction) []adminActionDTO {
	out := make([]adminActionDTO, 0, len(as))
	for _, a := range as {
		out = append(out, adminActionDTO{
			ID:           a.ID,
			AdminID:      a.AdminID,
			Action:       a.Action,
			RestaurantID: a.RestaurantID,
			FromStatus:   string(a.FromStatus),
			ToStatus:     string(a.ToStatus),
			At:           a.At,
		})
	}
	return out
}

type loginResponse struct {
	Token string  `json:"token"`
	Role  string  `json:"role"`
	User  userDTO `json:"user"`
}

type verifyResponse struct {
	Valid  bool   `json:"valid"`
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
}

type uploadResponse struct {
	URL string `json:"url"`
}
