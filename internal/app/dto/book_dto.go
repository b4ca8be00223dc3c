package dto

import (
	"github.com/mrops-br/catalog-service/internal/domain"
)

// BookRequest is the body of POST /books and PUT /books/{isbn}
type BookRequest struct {
	ISBN      string   `json:"isbn" validate:"required,isbn_digits"`
	Title     string   `json:"title" validate:"required,notblank"`
	Author    string   `json:"author" validate:"required,notblank"`
	Price     *float64 `json:"price" validate:"required,gte=0"`
	Publisher *string  `json:"publisher"`
}

// BookResponse is the JSON representation of a catalog entry
type BookResponse struct {
	ISBN      string  `json:"isbn"`
	Title     string  `json:"title"`
	Author    string  `json:"author"`
	Price     float64 `json:"price"`
	Publisher *string `json:"publisher"`
}

// ToDomain converts the request into a validated domain Book
func (r *BookRequest) ToDomain() (*domain.Book, error) {
	if err := Validate(r); err != nil {
		return nil, err
	}
	return domain.NewBook(r.ISBN, r.Title, r.Author, *r.Price, r.Publisher)
}

// ToBookResponse converts a domain Book to BookResponse
func ToBookResponse(b *domain.Book) *BookResponse {
	return &BookResponse{
		ISBN:      b.ISBN,
		Title:     b.Title,
		Author:    b.Author,
		Price:     b.Price,
		Publisher: b.Publisher,
	}
}

// ToBookResponseList converts a list of domain Books to BookResponse list
func ToBookResponseList(books []*domain.Book) []*BookResponse {
	responses := make([]*BookResponse, len(books))
	for i, b := range books {
		responses[i] = ToBookResponse(b)
	}
	return responses
}
