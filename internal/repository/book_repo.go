package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ebookviewer/internal/domain"
)

type BookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) *BookRepository {
	return &BookRepository{db: db}
}

func toDomainBook(m bookModel) domain.Book {
	return domain.Book{
		ID:         m.ID,
		Title:      m.Title,
		Author:     m.Author,
		File:       m.File,
		IsPremium:  m.IsPremium,
		UploadedBy: m.UploadedBy,
		CreatedAt:  m.CreatedAt,
	}
}

func (r *BookRepository) Create(ctx context.Context, b *domain.Book) error {
	m := bookModel{
		ID:         b.ID,
		Title:      b.Title,
		Author:     b.Author,
		File:       b.File,
		IsPremium:  b.IsPremium,
		UploadedBy: b.UploadedBy,
		CreatedAt:  b.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	*b = toDomainBook(m)
	return nil
}

// List returns every book, or only the free ones when includePremium is false.
func (r *BookRepository) List(ctx context.Context, includePremium bool) ([]domain.Book, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if !includePremium {
		q = q.Where("is_premium = ?", false)
	}
	var rows []bookModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Book, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainBook(m))
	}
	return out, nil
}

func (r *BookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	var m bookModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	b := toDomainBook(m)
	return &b, nil
}
