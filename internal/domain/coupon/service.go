package coupon

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ebookviewer/internal/domain"
	"ebookviewer/internal/events"
	"ebookviewer/internal/repository"
)

const codePrefix = "PREM-"

type Store interface {
	Create(ctx context.Context, c *domain.Coupon) error
	List(ctx context.Context) ([]domain.Coupon, error)
	Redeem(ctx context.Context, code string, userID int64, username string, now time.Time) (*repository.Redemption, error)
}

type Service struct {
	coupons      Store
	publisher    events.Publisher
	durationDays int
	log          *zap.Logger
	now          func() time.Time
}

func NewService(coupons Store, publisher events.Publisher, durationDays int, log *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if durationDays <= 0 {
		durationDays = 30
	}
	return &Service{
		coupons:      coupons,
		publisher:    publisher,
		durationDays: durationDays,
		log:          log,
		now:          time.Now,
	}
}

// NewCode returns PREM- followed by 12 upper-case hex characters.
func NewCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return codePrefix + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Generate creates an unused coupon, retrying once on the unlikely code collision.
func (s *Service) Generate(ctx context.Context) (*domain.Coupon, error) {
	for attempt := 0; attempt < 2; attempt++ {
		code, err := NewCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		c := &domain.Coupon{Code: code, DurationDays: s.durationDays, CreatedAt: s.now()}
		err = s.coupons.Create(ctx, c)
		if err == nil {
			s.log.Info("coupon generated", zap.String("code", c.Code))
			return c, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("store coupon: %w", err)
		}
	}
	return nil, fmt.Errorf("store coupon: %w", repository.ErrDuplicate)
}

func (s *Service) List(ctx context.Context) ([]domain.Coupon, error) {
	return s.coupons.List(ctx)
}

func (s *Service) Redeem(ctx context.Context, user *domain.User, code string) (*repository.Redemption, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}

	red, err := s.coupons.Redeem(ctx, code, user.ID, user.Username, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrCouponInvalid) {
			return nil, ErrInvalidCoupon
		}
		return nil, fmt.Errorf("redeem coupon: %w", err)
	}

	s.log.Info("coupon redeemed", zap.String("username", user.Username), zap.Time("expiry", red.ExpiryDate))
	e := events.New(events.TypeCouponRedeemed, user.Username, map[string]any{
		"code":         code,
		"durationDays": red.DurationDays,
		"expiryDate":   red.ExpiryDate,
	})
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Warn("event not published", zap.String("type", e.Type), zap.Error(err))
	}
	return red, nil
}
