package admin

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ebookviewer/internal/domain"
	"ebookviewer/internal/events"
	"ebookviewer/internal/repository"
)

type Service struct {
	users     UserStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewService(users UserStore, publisher events.Publisher, log *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{users: users, publisher: publisher, log: log}
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *Service) DeleteUser(ctx context.Context, actor *domain.User, username string) error {
	if actor != nil && actor.Username == username {
		return ErrCannotEditSelf
	}
	if err := s.users.DeleteByUsername(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info("user deleted", zap.String("username", username), zap.String("by", actorName(actor)))
	s.publish(ctx, events.New(events.TypeUserDeleted, username, map[string]any{"by": actorName(actor)}))
	return nil
}

// DemoteUser removes premium. A user that is already free is reported the
// same way as a missing one and nothing is written.
func (s *Service) DemoteUser(ctx context.Context, actor *domain.User, username string) error {
	if actor != nil && actor.Username == username {
		return ErrCannotEditSelf
	}
	if err := s.users.Demote(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotDemotable
		}
		return fmt.Errorf("demote user: %w", err)
	}
	s.log.Info("user demoted", zap.String("username", username), zap.String("by", actorName(actor)))
	s.publish(ctx, events.New(events.TypeUserDemoted, username, map[string]any{"by": actorName(actor)}))
	return nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Warn("event not published", zap.String("type", e.Type), zap.Error(err))
	}
}

func actorName(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}
