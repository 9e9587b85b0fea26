package domain

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalid, s)
}

type User struct {
	ID             int64
	Name           string
	Username       string
	PasswordHash   string
	Role           Role
	Approved       bool
	CreatedAt      time.Time
	TasksCompleted int
}

// Session is the authenticated caller, passed explicitly into every operation.
type Session struct {
	UserID int64
	Role   Role
}

func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }
