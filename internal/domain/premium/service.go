package premium

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ebookviewer/internal/domain"
	"ebookviewer/internal/repository"
)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	UpgradePermanent(ctx context.Context, id int64) (bool, error)
	ClearLapsedPremium(ctx context.Context, id int64, now time.Time) (bool, error)
}

// Service resolves premium state. Expired grants are demoted lazily, the
// first time the status is read after the expiry date.
type Service struct {
	users UserStore
	log   *zap.Logger
	now   func() time.Time
}

func NewService(users UserStore, log *zap.Logger) *Service {
	return &Service{users: users, log: log, now: time.Now}
}

func (s *Service) Status(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !user.PremiumLapsed(now) {
		return user, nil
	}

	changed, err := s.users.ClearLapsedPremium(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("demote expired premium: %w", err)
	}
	if changed {
		s.log.Info("premium expired", zap.String("username", user.Username), zap.Timep("expiry", user.PremiumExpiryDate))
	}
	return s.load(ctx, userID)
}

// Upgrade grants permanent premium.
func (s *Service) Upgrade(ctx context.Context, userID int64) (*domain.User, error) {
	changed, err := s.users.UpgradePermanent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("upgrade user: %w", err)
	}
	if !changed {
		return nil, ErrAlreadyPremium
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.log.Info("user upgraded", zap.String("username", user.Username))
	return user, nil
}

func (s *Service) load(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
