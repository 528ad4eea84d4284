package book

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ebookviewer/internal/cache"
	"ebookviewer/internal/domain"
	"ebookviewer/internal/domain/upload"
	"ebookviewer/internal/events"
	"ebookviewer/internal/repository"
)

type Store interface {
	Create(ctx context.Context, b *domain.Book) error
	List(ctx context.Context, includePremium bool) ([]domain.Book, error)
	GetByID(ctx context.Context, id string) (*domain.Book, error)
}

type FileStore interface {
	Save(fileHeader *multipart.FileHeader) (*upload.StoredFile, error)
	Remove(name string) error
}

type UploadInput struct {
	Title    string
	Author   string
	IsSample bool
	File     *multipart.FileHeader
	Scheme   string
	Host     string
}

type Service struct {
	books     Store
	files     FileStore
	lists     cache.BookLists
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewService(books Store, files FileStore, lists cache.BookLists, publisher events.Publisher, log *zap.Logger) *Service {
	if lists == nil {
		lists = cache.Noop{}
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		books:     books,
		files:     files,
		lists:     lists,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// ListFor returns every book to admins and active premium users, and only
// free books to everyone else.
func (s *Service) ListFor(ctx context.Context, user *domain.User) ([]domain.Book, error) {
	if user != nil && user.HasPremiumAccess(s.now()) {
		return s.list(ctx, cache.ScopeAll)
	}
	return s.list(ctx, cache.ScopeFree)
}

func (s *Service) ListPublic(ctx context.Context) ([]domain.Book, error) {
	return s.list(ctx, cache.ScopeFree)
}

func (s *Service) list(ctx context.Context, scope cache.Scope) ([]domain.Book, error) {
	books, err := s.lists.Get(ctx, scope)
	if err == nil {
		return books, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("book cache read failed", zap.String("scope", string(scope)), zap.Error(err))
	}

	gen, genErr := s.lists.Generation(ctx)
	books, err = s.books.List(ctx, scope == cache.ScopeAll)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if genErr != nil {
		s.log.Warn("book cache generation read failed", zap.Error(genErr))
		return books, nil
	}
	if err := s.lists.Set(ctx, scope, books, gen); err != nil {
		s.log.Warn("book cache write failed", zap.String("scope", string(scope)), zap.Error(err))
	}
	return books, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Book, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// Upload stores the file and inserts the book. Non-sample uploads are premium.
// The stored file is removed again if the insert fails.
func (s *Service) Upload(ctx context.Context, user *domain.User, in UploadInput) (*domain.Book, error) {
	stored, err := s.files.Save(in.File)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(stored.OriginalName), filepath.Ext(stored.OriginalName))
	}

	b := &domain.Book{
		ID:         uuid.NewString(),
		Title:      title,
		Author:     strings.TrimSpace(in.Author),
		File:       upload.PublicURL(in.Scheme, in.Host, stored.Name),
		IsPremium:  !in.IsSample,
		UploadedBy: user.Username,
		CreatedAt:  s.now(),
	}
	if err := s.books.Create(ctx, b); err != nil {
		if rmErr := s.files.Remove(stored.Name); rmErr != nil {
			s.log.Error("orphaned upload", zap.String("file", stored.Name), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("save book: %w", err)
	}

	if err := s.lists.Invalidate(ctx); err != nil {
		s.log.Warn("book cache invalidate failed", zap.Error(err))
	}
	s.log.Info("book uploaded",
		zap.String("id", b.ID),
		zap.String("title", b.Title),
		zap.Bool("premium", b.IsPremium),
		zap.String("by", user.Username),
		zap.Int64("size", stored.Size),
	)
	e := events.New(events.TypeBookUploaded, b.ID, map[string]any{
		"title":     b.Title,
		"isPremium": b.IsPremium,
		"by":        user.Username,
	})
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Warn("event not published", zap.String("type", e.Type), zap.Error(err))
	}
	return b, nil
}
