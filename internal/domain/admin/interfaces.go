package admin

import (
	"context"

	"ebookviewer/internal/domain"
)

type UserStore interface {
	List(ctx context.Context) ([]domain.User, error)
	DeleteByUsername(ctx context.Context, username string) error
	Demote(ctx context.Context, username string) error
}
