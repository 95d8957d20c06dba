package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/shop-cart/internal/core/domain"
	"github.com/rl1809/shop-cart/internal/port"
)

const minPasswordLength = 7

// UserService is the user directory: signup, credential checks and lookups.
type UserService struct {
	users      port.UserRepository
	bcryptCost int
	log        zerolog.Logger
}

func NewUserService(users port.UserRepository, bcryptCost int, log zerolog.Logger) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		users:      users,
		bcryptCost: bcryptCost,
		log:        log.With().Str("component", "users").Logger(),
	}
}

func (s *UserService) CreateUser(ctx context.Context, username, password, confirmPassword string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, fmt.Errorf("username is required: %w", ErrInvalidInput)
	}
	if len(password) < minPasswordLength || password != confirmPassword {
		s.log.Warn().Str("username", username).Msg("rejected signup: password too short or not confirmed")
		return domain.User{}, fmt.Errorf("password must be at least %d characters and match confirmation: %w", minPasswordLength, ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, domain.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})
	if errors.Is(err, port.ErrDuplicate) {
		return domain.User{}, fmt.Errorf("user %q: %w", username, ErrUserExists)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Str("username", username).Int64("user_id", user.ID).Msg("user created")
	return user, nil
}

// Authenticate reports ErrInvalidCredentials for both unknown users and wrong passwords.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, port.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	return lookupUser(ctx, s.users, username, s.log)
}

func (s *UserService) FindByID(ctx context.Context, id int64) (domain.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		s.log.Warn().Int64("user_id", id).Msg("user not found")
		return domain.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

func lookupUser(ctx context.Context, users port.UserRepository, username string, log zerolog.Logger) (domain.User, error) {
	user, err := users.GetUserByUsername(ctx, username)
	if errors.Is(err, port.ErrNotFound) {
		log.Warn().Str("username", username).Msg("user not found")
		return domain.User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user %q: %w", username, err)
	}
	return user, nil
}
