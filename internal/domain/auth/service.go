package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ebookviewer/internal/domain"
	"ebookviewer/internal/events"
	"ebookviewer/internal/pkg/jwt"
	"ebookviewer/internal/repository"
)

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// AdminAccount is the account seeded at startup and on first admin login.
type AdminAccount struct {
	Username string
	Password string
	Email    string
}

type Service struct {
	users     UserStore
	tokens    *jwt.Service
	publisher events.Publisher
	admin     AdminAccount
	log       *zap.Logger

	seedMu sync.Mutex
}

func NewService(users UserStore, tokens *jwt.Service, publisher events.Publisher, admin AdminAccount, log *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		publisher: publisher,
		admin:     admin,
		log:       log,
	}
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, ErrInvalidInput
	}

	if len(req.Password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		Email:        req.Email,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user signed up", zap.String("username", user.Username))
	s.publish(ctx, events.New(events.TypeUserSignedUp, user.Username, map[string]any{"email": user.Email}))
	return user, nil
}

// Login checks the password and issues an access/refresh token pair. Unknown
// users and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if errors.Is(err, repository.ErrNotFound) && req.Username == s.admin.Username {
		if seedErr := s.EnsureAdmin(ctx); seedErr != nil {
			return nil, seedErr
		}
		user, err = s.users.GetByUsername(ctx, req.Username)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = CheckPassword(req.Password, string(dummyHash))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := CheckPassword(req.Password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccess(user.Username, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	s.log.Info("user logged in", zap.String("username", user.Username), zap.Bool("admin", user.IsAdmin))
	return &LoginResponse{User: user, Token: access, RefreshToken: refresh}, nil
}

// Refresh mints a new access token for the subject of a valid refresh token.
// The refresh token is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	user, err := s.users.GetByUsername(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	access, err := s.tokens.IssueAccess(user.Username, user.IsAdmin)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	s.log.Debug("access token refreshed", zap.String("username", user.Username))
	return access, nil
}

// EnsureAdmin creates the admin account if it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context) error {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()

	if _, err := s.users.GetByUsername(ctx, s.admin.Username); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check admin: %w", err)
	}

	hash, err := HashPassword(s.admin.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := &domain.User{
		Username:     s.admin.Username,
		PasswordHash: hash,
		Email:        s.admin.Email,
		IsPremium:    true,
		IsAdmin:      true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		// another replica won the race
		if errors.Is(err, repository.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}
	s.log.Info("admin account created", zap.String("username", admin.Username))
	return nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Warn("event not published", zap.String("type", e.Type), zap.Error(err))
	}
}
