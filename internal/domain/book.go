package domain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrInvalidBook       = errors.New("book is invalid")
	ErrBookAlreadyExists = errors.New("book already exists")
	ErrISBNMismatch      = errors.New("isbn in path does not match isbn in body")
)

var isbnPattern = regexp.MustCompile(`^([0-9]{10}|[0-9]{13})$`)

// Book represents a catalog entry. ISBN is the identity.
type Book struct {
	ISBN      string
	Title     string
	Author    string
	Price     float64
	Publisher *string
}

// NewBook creates a validated book
func NewBook(isbn, title, author string, price float64, publisher *string) (*Book, error) {
	book := &Book{
		ISBN:      isbn,
		Title:     title,
		Author:    author,
		Price:     price,
		Publisher: publisher,
	}

	if err := book.Validate(); err != nil {
		return nil, err
	}

	return book, nil
}

// Validate performs business validation on the book
func (b *Book) Validate() error {
	fields := make(map[string]string)

	if !ValidISBN(b.ISBN) {
		fields["isbn"] = "must be 10 or 13 digits"
	}
	if strings.TrimSpace(b.Title) == "" {
		fields["title"] = "is required"
	}
	if strings.TrimSpace(b.Author) == "" {
		fields["author"] = "is required"
	}
	if b.Price < 0 {
		fields["price"] = "must not be negative"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Clone returns a deep copy so stored records never share the publisher pointer.
func (b *Book) Clone() *Book {
	c := *b
	if b.Publisher != nil {
		p := *b.Publisher
		c.Publisher = &p
	}
	return &c
}

// Equal reports whether two books hold the same values.
func (b *Book) Equal(o *Book) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.ISBN != o.ISBN || b.Title != o.Title || b.Author != o.Author || b.Price != o.Price {
		return false
	}
	if b.Publisher == nil || o.Publisher == nil {
		return b.Publisher == o.Publisher
	}
	return *b.Publisher == *o.Publisher
}

// ValidISBN reports whether isbn is a 10 or 13 digit identifier.
func ValidISBN(isbn string) bool {
	return isbnPattern.MatchString(isbn)
}

// ValidationError lists the offending fields and their reasons.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, e.Fields[name]))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidBook, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidBook
}
