package domain

import "time"

type Coupon struct {
	ID           int64      `json:"id"`
	Code         string     `json:"code"`
	Used         bool       `json:"used"`
	DurationDays int        `json:"durationDays"`
	UsedBy       *string    `json:"usedBy,omitempty"`
	UsedAt       *time.Time `json:"usedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}
