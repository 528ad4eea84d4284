package domain

import "time"

type User struct {
	ID                int64      `json:"id"`
	Username          string     `json:"username"`
	PasswordHash      string     `json:"-"`
	Email             string     `json:"email"`
	IsPremium         bool       `json:"isPremium"`
	PremiumExpiryDate *time.Time `json:"premiumExpiryDate"`
	IsAdmin           bool       `json:"isAdmin"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"-"`
}

// HasPremiumAccess reports whether the user may see premium books right now.
// Admins always may. A premium flag with a past expiry does not count.
func (u *User) HasPremiumAccess(now time.Time) bool {
	if u.IsAdmin {
		return true
	}
	if !u.IsPremium {
		return false
	}
	return u.PremiumExpiryDate == nil || u.PremiumExpiryDate.After(now)
}

// PremiumLapsed is true when the stored premium flag outlived its expiry date.
func (u *User) PremiumLapsed(now time.Time) bool {
	return u.IsPremium && u.PremiumExpiryDate != nil && !u.PremiumExpiryDate.After(now)
}

// PermanentPremium is the state an upgrade cannot improve on.
func (u *User) PermanentPremium() bool {
	return u.IsPremium && u.PremiumExpiryDate == nil
}
