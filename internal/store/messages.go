package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swapshelf/swapshelf-api/internal/models"
)

// MessageStore определяет операции хранения сообщений чата
type MessageStore interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	// ListBySwap возвращает сообщения заявки от новых к старым; before
	// используется для курсорной пагинации
	ListBySwap(ctx context.Context, swapID uuid.UUID, limit int, before *uuid.UUID) ([]*models.ChatMessage, error)
	// Latest возвращает последнее сообщение заявки или nil, если сообщений нет
	Latest(ctx context.Context, swapID uuid.UUID) (*models.ChatMessage, error)
	CountUnread(ctx context.Context, swapID uuid.UUID, excludeSenderID uuid.UUID) (int, error)
	// MarkRead помечает прочитанными все сообщения заявки, отправленные не readerID
	MarkRead(ctx context.Context, swapID uuid.UUID, readerID uuid.UUID) error
}

// PostgresMessageStore реализует MessageStore поверх PostgreSQL
type PostgresMessageStore struct {
	pool *pgxpool.Pool
}

// NewPostgresMessageStore создает новый экземпляр PostgresMessageStore
func NewPostgresMessageStore(pool *pgxpool.Pool) *PostgresMessageStore {
	return &PostgresMessageStore{pool: pool}
}

var _ MessageStore = (*PostgresMessageStore)(nil)

const messageColumns = `id, swap_request_id, sender_id, text, images, sent_at, read_by_receiver`

func scanMessage(row pgx.Row) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := row.Scan(
		&msg.ID,
		&msg.SwapRequestID,
		&msg.SenderID,
		&msg.Text,
		&msg.Images,
		&msg.SentAt,
		&msg.ReadByReceiver,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *PostgresMessageStore) Create(ctx context.Context, msg *models.ChatMessage) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO chat_messages (id, swap_request_id, sender_id, text, images, sent_at, read_by_receiver)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, msg.ID, msg.SwapRequestID, msg.SenderID, msg.Text, msg.Images, msg.SentAt, msg.ReadByReceiver)
	if err != nil {
		return fmt.Errorf("ошибка при создании сообщения: %w", err)
	}
	return nil
}

func (s *PostgresMessageStore) ListBySwap(ctx context.Context, swapID uuid.UUID, limit int, before *uuid.UUID) ([]*models.ChatMessage, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if before != nil {
		rows, err = s.pool.Query(ctx, `
            SELECT `+messageColumns+` FROM chat_messages
            WHERE swap_request_id = $1
              AND sent_at < (SELECT sent_at FROM chat_messages WHERE id = $2)
            ORDER BY sent_at DESC
            LIMIT $3
        `, swapID, *before, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
            SELECT `+messageColumns+` FROM chat_messages
            WHERE swap_request_id = $1
            ORDER BY sent_at DESC
            LIMIT $2
        `, swapID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе сообщений заявки %s: %w", swapID, err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании сообщения: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при чтении списка сообщений: %w", err)
	}
	return messages, nil
}

func (s *PostgresMessageStore) Latest(ctx context.Context, swapID uuid.UUID) (*models.ChatMessage, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT `+messageColumns+` FROM chat_messages
        WHERE swap_request_id = $1
        ORDER BY sent_at DESC
        LIMIT 1
    `, swapID)
	msg, err := scanMessage(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка при получении последнего сообщения заявки %s: %w", swapID, err)
	}
	return msg, nil
}

func (s *PostgresMessageStore) CountUnread(ctx context.Context, swapID uuid.UUID, excludeSenderID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM chat_messages
        WHERE swap_request_id = $1 AND sender_id != $2 AND read_by_receiver = false
    `, swapID, excludeSenderID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка при подсчете непрочитанных сообщений заявки %s: %w", swapID, err)
	}
	return count, nil
}

func (s *PostgresMessageStore) MarkRead(ctx context.Context, swapID uuid.UUID, readerID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
        UPDATE chat_messages
        SET read_by_receiver = true
        WHERE swap_request_id = $1 AND sender_id != $2 AND read_by_receiver = false
    `, swapID, readerID)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении статуса прочтения заявки %s: %w", swapID, err)
	}
	return nil
}
