package model

import "time"

type Book struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Author      string    `json:"author" db:"author"`
	Isbn        *string   `json:"isbn" db:"isbn"`
	Publisher   *string   `json:"publisher" db:"publisher"`
	PublishYear *int      `json:"publishYear" db:"publish_year"`
	Available   bool      `json:"available" db:"available"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type CreateBookRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=255"`
	Author      string  `json:"author" validate:"required,min=1,max=255"`
	Isbn        *string `json:"isbn" validate:"omitempty,isbn_format"`
	Publisher   *string `json:"publisher" validate:"omitempty,max=255"`
	PublishYear *int    `json:"publishYear" validate:"omitempty,min=1000,max=2100"`
}

// UpdateBookRequest is a partial update. Availability is not part of it.
type UpdateBookRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Author      *string `json:"author" validate:"omitempty,min=1,max=255"`
	Isbn        *string `json:"isbn" validate:"omitempty,isbn_format"`
	Publisher   *string `json:"publisher" validate:"omitempty,max=255"`
	PublishYear *int    `json:"publishYear" validate:"omitempty,min=1000,max=2100"`
}

func (r UpdateBookRequest) Apply(b *Book) {
	if r.Title != nil {
		b.Title = *r.Title
	}
	if r.Author != nil {
		b.Author = *r.Author
	}
	if r.Isbn != nil {
		b.Isbn = r.Isbn
	}
	if r.Publisher != nil {
		b.Publisher = r.Publisher
	}
	if r.PublishYear != nil {
		b.PublishYear = r.PublishYear
	}
}
