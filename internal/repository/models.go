package repository

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	ErrCouponInvalid = errors.New("coupon unknown or already used")
)

type userModel struct {
	ID                int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Username          string     `gorm:"column:username;uniqueIndex;not null"`
	PasswordHash      string     `gorm:"column:password_hash;not null"`
	Email             string     `gorm:"column:email"`
	IsPremium         bool       `gorm:"column:is_premium;not null;default:false"`
	PremiumExpiryDate *time.Time `gorm:"column:premium_expiry_date"`
	IsAdmin           bool       `gorm:"column:is_admin;not null;default:false"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type bookModel struct {
	ID         string    `gorm:"column:id;primaryKey;size:36"`
	Title      string    `gorm:"column:title;not null"`
	Author     string    `gorm:"column:author"`
	File       string    `gorm:"column:file;not null"`
	IsPremium  bool      `gorm:"column:is_premium;not null;index"`
	UploadedBy string    `gorm:"column:uploaded_by"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (bookModel) TableName() string { return "books" }

type couponModel struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Code         string     `gorm:"column:code;uniqueIndex;not null"`
	Used         bool       `gorm:"column:used;not null;default:false"`
	DurationDays int        `gorm:"column:duration_days;not null"`
	UsedBy       *string    `gorm:"column:used_by"`
	UsedAt       *time.Time `gorm:"column:used_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
}

func (couponModel) TableName() string { return "coupons" }

// Models lists every table the service owns, for AutoMigrate.
func Models() []any {
	return []any{&userModel{}, &bookModel{}, &couponModel{}}
}
