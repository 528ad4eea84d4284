package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"ebookviewer/internal/domain"
)

type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func toDomainCoupon(m couponModel) domain.Coupon {
	return domain.Coupon{
		ID:           m.ID,
		Code:         m.Code,
		Used:         m.Used,
		DurationDays: m.DurationDays,
		UsedBy:       m.UsedBy,
		UsedAt:       m.UsedAt,
		CreatedAt:    m.CreatedAt,
	}
}

func (r *CouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	m := couponModel{
		Code:         c.Code,
		Used:         c.Used,
		DurationDays: c.DurationDays,
		CreatedAt:    c.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	*c = toDomainCoupon(m)
	return nil
}

func (r *CouponRepository) List(ctx context.Context) ([]domain.Coupon, error) {
	var rows []couponModel
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Coupon, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainCoupon(m))
	}
	return out, nil
}

type Redemption struct {
	ExpiryDate   time.Time
	DurationDays int
}

// Redeem marks the coupon used and extends the user's premium in one
// transaction. The coupon update is conditional on used=false, so of two
// concurrent redemptions exactly one wins and the other gets ErrCouponInvalid.
func (r *CouponRepository) Redeem(ctx context.Context, code string, userID int64, username string, now time.Time) (*Redemption, error) {
	var out *Redemption
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c couponModel
		if err := tx.Where("code = ? AND used = ?", code, false).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCouponInvalid
			}
			return err
		}

		res := tx.Model(&couponModel{}).
			Where("id = ? AND used = ?", c.ID, false).
			Updates(map[string]any{"used": true, "used_by": username, "used_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCouponInvalid
		}

		expiry := now.AddDate(0, 0, c.DurationDays)
		res = tx.Model(&userModel{}).Where("id = ?", userID).Updates(map[string]any{
			"is_premium":          true,
			"premium_expiry_date": expiry,
			"updated_at":          now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		out = &Redemption{ExpiryDate: expiry, DurationDays: c.DurationDays}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
