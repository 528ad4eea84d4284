package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ebookviewer/internal/domain"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(Models()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func createUser(t *testing.T, repo *UserRepository, u domain.User) *domain.User {
	t.Helper()
	if u.PasswordHash == "" {
		u.PasswordHash = "hash"
	}
	require.NoError(t, repo.Create(context.Background(), &u))
	return &u
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()

	u := createUser(t, repo, domain.User{Username: "alice", Email: " alice@example.com "})
	assert.NotZero(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.IsPremium)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_Demote(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()
	expiry := time.Now().Add(24 * time.Hour)

	createUser(t, repo, domain.User{Username: "paid", IsPremium: true, PremiumExpiryDate: &expiry})
	createUser(t, repo, domain.User{Username: "free"})

	require.NoError(t, repo.Demote(ctx, "paid"))
	got, err := repo.GetByUsername(ctx, "paid")
	require.NoError(t, err)
	assert.False(t, got.IsPremium)
	assert.Nil(t, got.PremiumExpiryDate)

	assert.ErrorIs(t, repo.Demote(ctx, "free"), ErrNotFound)
	assert.ErrorIs(t, repo.Demote(ctx, "paid"), ErrNotFound)
	assert.ErrorIs(t, repo.Demote(ctx, "ghost"), ErrNotFound)
}

func TestUserRepository_UpgradePermanent(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	free := createUser(t, repo, domain.User{Username: "free"})
	timed := createUser(t, repo, domain.User{Username: "timed", IsPremium: true, PremiumExpiryDate: &expiry})
	forever := createUser(t, repo, domain.User{Username: "forever", IsPremium: true})

	for _, u := range []*domain.User{free, timed} {
		changed, err := repo.UpgradePermanent(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, changed, u.Username)

		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, got.PermanentPremium())
	}

	changed, err := repo.UpgradePermanent(ctx, forever.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUserRepository_ClearLapsedPremium(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	lapsed := createUser(t, repo, domain.User{Username: "lapsed", IsPremium: true, PremiumExpiryDate: &past})
	active := createUser(t, repo, domain.User{Username: "active", IsPremium: true, PremiumExpiryDate: &future})

	changed, err := repo.ClearLapsedPremium(ctx, lapsed.ID, now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.ClearLapsedPremium(ctx, active.ID, now)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUserRepository_SweepLapsedPremium(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	createUser(t, repo, domain.User{Username: "lapsed1", IsPremium: true, PremiumExpiryDate: &past})
	createUser(t, repo, domain.User{Username: "lapsed2", IsPremium: true, PremiumExpiryDate: &past})
	createUser(t, repo, domain.User{Username: "active", IsPremium: true, PremiumExpiryDate: &future})
	createUser(t, repo, domain.User{Username: "forever", IsPremium: true})

	n, err := repo.SweepLapsedPremium(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	u, err := repo.GetByUsername(ctx, "lapsed1")
	require.NoError(t, err)
	assert.False(t, u.IsPremium)
	assert.Nil(t, u.PremiumExpiryDate)

	u, err = repo.GetByUsername(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, u.IsPremium)

	n, err = repo.SweepLapsedPremium(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUserRepository_ListAndDelete(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()
	createUser(t, repo, domain.User{Username: "a"})
	createUser(t, repo, domain.User{Username: "b"})

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, repo.DeleteByUsername(ctx, "a"))
	assert.ErrorIs(t, repo.DeleteByUsername(ctx, "a"), ErrNotFound)

	exists, err := repo.ExistsByUsername(ctx, "b")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBookRepository_ListFiltersPremium(t *testing.T) {
	repo := NewBookRepository(setupDB(t))
	ctx := context.Background()

	free := &domain.Book{ID: uuid.NewString(), Title: "Free", File: "http://x/uploads/a.pdf", IsPremium: false}
	paid := &domain.Book{ID: uuid.NewString(), Title: "Paid", File: "http://x/uploads/b.pdf", IsPremium: true}
	require.NoError(t, repo.Create(ctx, free))
	require.NoError(t, repo.Create(ctx, paid))

	all, err := repo.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	freeOnly, err := repo.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, freeOnly, 1)
	assert.Equal(t, "Free", freeOnly[0].Title)

	got, err := repo.GetByID(ctx, paid.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPremium)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCouponRepository_RedeemOnce(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	coupons := NewCouponRepository(db)
	ctx := context.Background()

	u := createUser(t, users, domain.User{Username: "reader"})
	c := &domain.Coupon{Code: "PREM-ABCDEF123456", DurationDays: 30}
	require.NoError(t, coupons.Create(ctx, c))

	now := time.Now().UTC()
	red, err := coupons.Redeem(ctx, c.Code, u.ID, u.Username, now)
	require.NoError(t, err)
	assert.Equal(t, 30, red.DurationDays)
	assert.WithinDuration(t, now.AddDate(0, 0, 30), red.ExpiryDate, time.Second)

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPremium)
	require.NotNil(t, got.PremiumExpiryDate)

	_, err = coupons.Redeem(ctx, c.Code, u.ID, u.Username, now)
	assert.ErrorIs(t, err, ErrCouponInvalid)

	_, err = coupons.Redeem(ctx, "PREM-000000000000", u.ID, u.Username, now)
	assert.ErrorIs(t, err, ErrCouponInvalid)

	list, err := coupons.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Used)
	require.NotNil(t, list[0].UsedBy)
	assert.Equal(t, "reader", *list[0].UsedBy)
}

func TestCouponRepository_ConcurrentRedeemSingleWinner(t *testing.T) {
	db := setupDB(t)
	users := NewUserRepository(db)
	coupons := NewCouponRepository(db)
	ctx := context.Background()

	a := createUser(t, users, domain.User{Username: "a"})
	b := createUser(t, users, domain.User{Username: "b"})
	require.NoError(t, coupons.Create(ctx, &domain.Coupon{Code: "PREM-111111111111", DurationDays: 30}))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []*domain.User{a, b} {
		wg.Add(1)
		go func(i int, u *domain.User) {
			defer wg.Done()
			_, errs[i] = coupons.Redeem(ctx, "PREM-111111111111", u.ID, u.Username, time.Now())
		}(i, u)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrCouponInvalid)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestCouponRepository_DuplicateCode(t *testing.T) {
	coupons := NewCouponRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, coupons.Create(ctx, &domain.Coupon{Code: "PREM-AAAAAAAAAAAA", DurationDays: 30}))
	assert.ErrorIs(t, coupons.Create(ctx, &domain.Coupon{Code: "PREM-AAAAAAAAAAAA", DurationDays: 30}), ErrDuplicate)
}
