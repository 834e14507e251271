package models

import (
	"time"

	"github.com/google/uuid"
)

// Book представляет книгу, выставленную пользователем на обмен
type Book struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	Description string    `json:"description,omitempty"`

	// Книги и жанры, на которые владелец готов обменять эту книгу
	SwappableBookIDs  []uuid.UUID `json:"swappable_book_ids,omitempty"`
	SwappableGenreIDs []uuid.UUID `json:"swappable_genre_ids,omitempty"`

	Images    []BookImage `json:"images,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// BookImage представляет изображение книги
type BookImage struct {
	ID         uuid.UUID `json:"id"`
	BookID     uuid.UUID `json:"book_id"`
	URL        string    `json:"url"`
	PreviewURL string    `json:"preview_url,omitempty"`
	IsMain     bool      `json:"is_main"`
}

// User представляет минимальную информацию о пользователе для API
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// FullName возвращает имя и фамилию пользователя одной строкой
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
