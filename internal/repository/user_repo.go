package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"ebookviewer/internal/domain"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func toDomainUser(m userModel) *domain.User {
	return &domain.User{
		ID:                m.ID,
		Username:          m.Username,
		PasswordHash:      m.PasswordHash,
		Email:             m.Email,
		IsPremium:         m.IsPremium,
		PremiumExpiryDate: m.PremiumExpiryDate,
		IsAdmin:           m.IsAdmin,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toUserModel(u *domain.User) userModel {
	return userModel{
		ID:                u.ID,
		Username:          u.Username,
		PasswordHash:      u.PasswordHash,
		Email:             strings.TrimSpace(u.Email),
		IsPremium:         u.IsPremium,
		PremiumExpiryDate: u.PremiumExpiryDate,
		IsAdmin:           u.IsAdmin,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	tx := r.db.WithContext(ctx).Create(&m)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return tx.Error
	}
	*u = *toDomainUser(m)
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var m userModel
	tx := r.db.WithContext(ctx).Where("username = ?", username).First(&m)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, tx.Error
	}
	return toDomainUser(m), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var m userModel
	tx := r.db.WithContext(ctx).First(&m, id)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, tx.Error
	}
	return toDomainUser(m), nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userModel{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	var rows []userModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainUser(m))
	}
	return out, nil
}

// DeleteByUsername returns ErrNotFound when nothing was deleted.
func (r *UserRepository) DeleteByUsername(ctx context.Context, username string) error {
	res := r.db.WithContext(ctx).Where("username = ?", username).Delete(&userModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Demote clears premium state only for users that have some. ErrNotFound
// covers both a missing user and one that is already free.
func (r *UserRepository) Demote(ctx context.Context, username string) error {
	res := r.db.WithContext(ctx).Model(&userModel{}).
		Where("username = ? AND (is_premium = ? OR premium_expiry_date IS NOT NULL)", username, true).
		Updates(map[string]any{
			"is_premium":          false,
			"premium_expiry_date": nil,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpgradePermanent grants premium without expiry. It reports false when the
// user already had it, in which case nothing was written.
func (r *UserRepository) UpgradePermanent(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&userModel{}).
		Where("id = ? AND NOT (is_premium = ? AND premium_expiry_date IS NULL)", id, true).
		Updates(map[string]any{
			"is_premium":          true,
			"premium_expiry_date": nil,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClearLapsedPremium demotes a user whose premium expiry has passed. The
// expiry condition is repeated in SQL so a concurrent renewal is not undone.
func (r *UserRepository) ClearLapsedPremium(ctx context.Context, id int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&userModel{}).
		Where("id = ? AND is_premium = ? AND premium_expiry_date IS NOT NULL AND premium_expiry_date <= ?", id, true, now).
		Updates(map[string]any{
			"is_premium":          false,
			"premium_expiry_date": nil,
			"updated_at":          now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SweepLapsedPremium clears every premium grant whose expiry has passed.
// Permanent grants (no expiry date) are left alone.
func (r *UserRepository) SweepLapsedPremium(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&userModel{}).
		Where("is_premium = ? AND premium_expiry_date IS NOT NULL AND premium_expiry_date <= ?", true, now).
		Updates(map[string]any{
			"is_premium":          false,
			"premium_expiry_date": nil,
			"updated_at":          now,
		})
	return res.RowsAffected, res.Error
}
