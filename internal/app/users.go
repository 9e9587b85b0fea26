package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"mealsfly_review/internal/domain"
)

const minPasswordLen = 6

type UserService struct {
	store  domain.Store
	hasher domain.PasswordHasher
	fx     effects
}

func NewUserService(s domain.Store, h domain.PasswordHasher, c domain.Cache, e domain.EventPublisher) *UserService {
	return &UserService{store: s, hasher: h, fx: effects{cache: c, events: e}}
}

func normalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func checkPassword(pw string) error {
	if len(pw) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalid, minPasswordLen)
	}
	return nil
}

// Register creates an unapproved reviewer account.
func (s *UserService) Register(ctx context.Context, name, username, password string) (domain.User, error) {
	name, username = strings.TrimSpace(name), normalizeUsername(username)
	if name == "" || username == "" {
		return domain.User{}, fmt.Errorf("%w: name and username are required", domain.ErrInvalid)
	}
	if err := checkPassword(password); err != nil {
		return domain.User{}, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.store.CreateUser(ctx, domain.User{
		Name:         name,
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.User{}, err
	}
	log.Info().Int64("user_id", u.ID).Str("username", u.Username).Msg("reviewer registered")
	return u, nil
}

// EnsureAdmin creates the admin account if it is missing. An existing admin
// is returned untouched; an existing reviewer with that username is a conflict.
func (s *UserService) EnsureAdmin(ctx context.Context, name, username, password string) (domain.User, bool, error) {
	username = normalizeUsername(username)
	cur, err := s.store.GetUserByUsername(ctx, username)
	switch {
	case err == nil && cur.Role == domain.RoleAdmin:
		return cur, false, nil
	case err == nil:
		return domain.User{}, false, fmt.Errorf("%w: %q is a reviewer account", domain.ErrConflict, username)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, false, err
	}
	if err := checkPassword(password); err != nil {
		return domain.User{}, false, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, false, err
	}
	if strings.TrimSpace(name) == "" {
		name = username
	}
	u, err := s.store.CreateUser(ctx, domain.User{
		Name:         strings.TrimSpace(name),
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Approved:     true,
		CreatedAt:    time.Now().UTC(),
	})
	return u, err == nil, err
}

func (s *UserService) Me(ctx context.Context, sess domain.Session) (domain.User, error) {
	u, err := s.store.GetUser(ctx, sess.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: account no longer exists", domain.ErrUnauthorized)
	}
	return u, err
}

// ListUsers returns reviewer accounts with their completed task counts.
func (s *UserService) ListUsers(ctx context.Context, sess domain.Session) ([]domain.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx, domain.RoleUser)
}

func (s *UserService) ApproveUser(ctx context.Context, sess domain.Session, userID int64) (domain.User, error) {
	if err := requireAdmin(sess); err != nil {
		return domain.User{}, err
	}
	u, err := s.store.ApproveUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	log.Info().Int64("admin_id", sess.UserID).Int64("user_id", userID).Msg("reviewer approved")
	return u, nil
}

// DeleteUser removes a reviewer and their tasks. Restaurants they still held
// go back to not_started.
func (s *UserService) DeleteUser(ctx context.Context, sess domain.Session, userID int64) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	now := time.Now().UTC()
	var released []domain.Task
	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if u.Role == domain.RoleAdmin {
			return fmt.Errorf("%w: admin accounts cannot be deleted", domain.ErrForbidden)
		}
		pending, err := tx.ListUserTasks(ctx, userID, domain.TaskPending)
		if err != nil {
			return err
		}
		for _, t := range pending {
			ok, err := tx.SwapRestaurantState(ctx, t.RestaurantID, domain.StatusPending, domain.RestaurantState{
				Status:    domain.StatusNotStarted,
				UpdatedAt: now,
			})
			if err != nil {
				return err
			}
			if ok {
				released = append(released, t)
			}
		}
		return tx.DeleteUser(ctx, userID)
	})
	if err != nil {
		return err
	}

	log.Warn().
		Int64("admin_id", sess.UserID).
		Int64("user_id", userID).
		Int("released", len(released)).
		Msg("reviewer deleted")

	for _, t := range released {
		s.fx.emit(ctx, domain.TaskEvent{
			Type:         domain.EventTaskReleased,
			RestaurantID: t.RestaurantID,
			TaskID:       t.ID,
			UserID:       userID,
			OldStatus:    domain.StatusPending,
			NewStatus:    domain.StatusNotStarted,
			ActorID:      sess.UserID,
			At:           now,
		})
	}
	return nil
}

type AuthService struct {
	users  domain.UserRepository
	hasher domain.PasswordHasher
	tokens domain.TokenIssuer
}

func NewAuthService(u domain.UserRepository, h domain.PasswordHasher, t domain.TokenIssuer) *AuthService {
	return &AuthService{users: u, hasher: h, tokens: t}
}

var errBadCredentials = fmt.Errorf("%w: invalid username, password or role", domain.ErrUnauthorized)

// Login checks credentials and the role the client asked to sign in as.
// Unapproved reviewers may log in; their task operations are refused later.
func (s *AuthService) Login(ctx context.Context, username, password string, role domain.Role) (string, domain.User, error) {
	u, err := s.users.GetUserByUsername(ctx, normalizeUsername(username))
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.User{}, errBadCredentials
	}
	if err != nil {
		return "", domain.User{}, err
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return "", domain.User{}, errBadCredentials
	}
	if u.Role != role {
		return "", domain.User{}, errBadCredentials
	}
	tok, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return "", domain.User{}, err
	}
	return tok, u, nil
}

func (s *AuthService) VerifyToken(token string) (domain.Session, error) {
	sess, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return sess, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, sess domain.Session, oldPassword, newPassword string) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	u, err := s.users.GetUser(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(u.PasswordHash, oldPassword); err != nil {
		return fmt.Errorf("%w: current password is incorrect", domain.ErrUnauthorized)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	log.Info().Int64("admin_id", u.ID).Msg("admin password changed")
	return nil
}
