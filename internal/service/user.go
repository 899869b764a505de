package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/poit/internal/apperror"
	"github.com/sakif/poit/internal/auth"
	"github.com/sakif/poit/internal/model"
	"github.com/sakif/poit/internal/repository"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 8
	MaxPasswordLength = auth.MaxPasswordBytes
)

// UserService registers users and records follows. It backs the seed tool;
// account creation has no HTTP surface.
type UserService struct {
	users     repository.UserRepository
	follows   repository.FollowRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		follows:   follows,
		passwords: passwords,
		logger:    logger,
	}
}

// Register validates the credentials, hashes the password and stores the user.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "email address is invalid")
	}
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be between %d and %d bytes", MinPasswordLength, MaxPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("registering %q: %w", username, err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Follow makes followerID a follower of followingID.
func (s *UserService) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == "" {
		return apperror.Unauthorized("sign in to follow users")
	}
	if followerID == followingID {
		return apperror.ValidationFailed("followingId", "users cannot follow themselves")
	}
	if err := s.follows.Follow(ctx, followerID, followingID); err != nil {
		return err
	}
	s.logger.Info("user followed",
		slog.String("follower", followerID),
		slog.String("following", followingID),
	)
	return nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetUserByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	return s.users.GetUserByUsername(ctx, username)
}

// validateUsername keeps usernames distinguishable from email addresses.
func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength))
	}
	if strings.Contains(username, "@") {
		return apperror.ValidationFailed("username", "username must not contain @")
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return apperror.ValidationFailed("username", "username must not contain whitespace")
	}
	return nil
}
