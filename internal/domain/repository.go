package domain

import (
	"context"
	"errors"
)

var (
	ErrBookNotFound = errors.New("book not found")
)

// BookRepository defines the contract for book storage.
//
// Create inserts only when the ISBN is absent and returns
// ErrBookAlreadyExists otherwise; the check and the insert are one atomic
// step. Save inserts when the ISBN is absent and replaces the whole record
// when present. DeleteByISBN succeeds whether or not the ISBN exists.
type BookRepository interface {
	FindAll(ctx context.Context) ([]*Book, error)
	FindByISBN(ctx context.Context, isbn string) (*Book, error)
	ExistsByISBN(ctx context.Context, isbn string) (bool, error)
	Create(ctx context.Context, book *Book) (*Book, error)
	Save(ctx context.Context, book *Book) (*Book, error)
	DeleteByISBN(ctx context.Context, isbn string) error
}
