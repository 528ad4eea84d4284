package book

import "errors"

var (
	ErrInvalidID    = errors.New("invalid book id")
	ErrBookNotFound = errors.New("book not found")
)
