package store

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swapshelf/swapshelf-api/internal/models"
)

// BookStore определяет доступ к книгам, нужный движку обменов:
// владелец, название и списки допустимых книг/жанров для обмена
type BookStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
}

// PostgresBookStore реализует BookStore поверх PostgreSQL
type PostgresBookStore struct {
	pool *pgxpool.Pool
}

// NewPostgresBookStore создает новый экземпляр PostgresBookStore
func NewPostgresBookStore(pool *pgxpool.Pool) *PostgresBookStore {
	return &PostgresBookStore{pool: pool}
}

var _ BookStore = (*PostgresBookStore)(nil)

func (s *PostgresBookStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	err := s.pool.QueryRow(ctx, `
        SELECT id, owner_id, title, author, description, created_at, updated_at
        FROM books
        WHERE id = $1
    `, id).Scan(
		&book.ID,
		&book.OwnerID,
		&book.Title,
		&book.Author,
		&book.Description,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("ошибка при получении книги %s: %w", id, err)
	}

	// Списки допустимых книг и жанров для обмена
	book.SwappableBookIDs, err = s.queryIDs(ctx, `
        SELECT swappable_book_id FROM book_swappable_books WHERE book_id = $1
    `, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении списка книг для обмена: %w", err)
	}

	book.SwappableGenreIDs, err = s.queryIDs(ctx, `
        SELECT genre_id FROM book_swappable_genres WHERE book_id = $1
    `, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении списка жанров для обмена: %w", err)
	}

	// Изображения книги
	rows, err := s.pool.Query(ctx, `
        SELECT id, url, preview_url, is_main
        FROM book_images
        WHERE book_id = $1
        ORDER BY position ASC
    `, id)
	if err != nil {
		log.Printf("Ошибка получения изображений книги %s: %v", id, err)
	} else {
		defer rows.Close()
		for rows.Next() {
			var image models.BookImage
			if err := rows.Scan(&image.ID, &image.URL, &image.PreviewURL, &image.IsMain); err != nil {
				log.Printf("Ошибка сканирования изображения: %v", err)
				continue
			}
			image.BookID = id
			book.Images = append(book.Images, image)
		}
	}

	return &book, nil
}

func (s *PostgresBookStore) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
