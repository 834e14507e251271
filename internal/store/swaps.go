package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swapshelf/swapshelf-api/internal/models"
)

// SwapStore определяет операции хранения заявок на обмен
type SwapStore interface {
	Create(ctx context.Context, swap *models.SwapRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error)
	ListSent(ctx context.Context, userID uuid.UUID, status *models.SwapStatus) ([]*models.SwapRequest, error)
	ListReceived(ctx context.Context, userID uuid.UUID, status *models.SwapStatus) ([]*models.SwapRequest, error)
	ExistsByParties(ctx context.Context, senderID, receiverID, bookID uuid.UUID) (bool, error)
	// UpdateStatusIf выполняет условное обновление статуса: запись меняется
	// только если текущий статус равен from. Возвращает false, если статус
	// уже успел измениться другим вызовом.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to models.SwapStatus, now time.Time) (bool, error)
	// ClearReadFor сбрасывает отметку прочтения стороны party (появились
	// новые данные, которые она еще не видела)
	ClearReadFor(ctx context.Context, id uuid.UUID, party uuid.UUID) error
	// MarkReadFor проставляет отметку прочтения стороны party, только если
	// она еще не проставлена
	MarkReadFor(ctx context.Context, id uuid.UUID, party uuid.UUID, at time.Time) error
}

// PostgresSwapStore реализует SwapStore поверх PostgreSQL
type PostgresSwapStore struct {
	pool *pgxpool.Pool
}

// NewPostgresSwapStore создает новый экземпляр PostgresSwapStore
func NewPostgresSwapStore(pool *pgxpool.Pool) *PostgresSwapStore {
	return &PostgresSwapStore{pool: pool}
}

var _ SwapStore = (*PostgresSwapStore)(nil)

const swapColumns = `id, sender_id, receiver_id, requested_book_id, swap_type,
       offered_book_id, offered_genre_id, ask_for_giveaway, status, note,
       requested_at, updated_at, read_by_sender_at, read_by_receiver_at`

func scanSwap(row pgx.Row) (*models.SwapRequest, error) {
	var swap models.SwapRequest
	err := row.Scan(
		&swap.ID,
		&swap.SenderID,
		&swap.ReceiverID,
		&swap.RequestedBookID,
		&swap.SwapType,
		&swap.OfferedBookID,
		&swap.OfferedGenreID,
		&swap.AskForGiveaway,
		&swap.Status,
		&swap.Note,
		&swap.RequestedAt,
		&swap.UpdatedAt,
		&swap.ReadBySenderAt,
		&swap.ReadByReceiverAt,
	)
	if err != nil {
		return nil, err
	}
	return &swap, nil
}

func (s *PostgresSwapStore) Create(ctx context.Context, swap *models.SwapRequest) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO swap_requests (id, sender_id, receiver_id, requested_book_id, swap_type,
                                   offered_book_id, offered_genre_id, ask_for_giveaway, status, note,
                                   requested_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, swap.ID, swap.SenderID, swap.ReceiverID, swap.RequestedBookID, swap.SwapType,
		swap.OfferedBookID, swap.OfferedGenreID, swap.AskForGiveaway, swap.Status, swap.Note,
		swap.RequestedAt, swap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка при создании заявки на обмен: %w", err)
	}
	return nil
}

func (s *PostgresSwapStore) GetByID(ctx context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+swapColumns+` FROM swap_requests WHERE id = $1`, id)
	swap, err := scanSwap(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSwapNotFound
		}
		return nil, fmt.Errorf("ошибка при получении заявки %s: %w", id, err)
	}
	return swap, nil
}

func (s *PostgresSwapStore) ListSent(ctx context.Context, userID uuid.UUID, status *models.SwapStatus) ([]*models.SwapRequest, error) {
	return s.listByColumn(ctx, "sender_id", userID, status)
}

func (s *PostgresSwapStore) ListReceived(ctx context.Context, userID uuid.UUID, status *models.SwapStatus) ([]*models.SwapRequest, error) {
	return s.listByColumn(ctx, "receiver_id", userID, status)
}

func (s *PostgresSwapStore) listByColumn(ctx context.Context, column string, userID uuid.UUID, status *models.SwapStatus) ([]*models.SwapRequest, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		rows, err = s.pool.Query(ctx, `
            SELECT `+swapColumns+` FROM swap_requests
            WHERE `+column+` = $1 AND status = $2
            ORDER BY requested_at DESC
        `, userID, *status)
	} else {
		rows, err = s.pool.Query(ctx, `
            SELECT `+swapColumns+` FROM swap_requests
            WHERE `+column+` = $1
            ORDER BY requested_at DESC
        `, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе заявок пользователя %s: %w", userID, err)
	}
	defer rows.Close()

	var swaps []*models.SwapRequest
	for rows.Next() {
		swap, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании заявки: %w", err)
		}
		swaps = append(swaps, swap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при чтении списка заявок: %w", err)
	}
	return swaps, nil
}

func (s *PostgresSwapStore) ExistsByParties(ctx context.Context, senderID, receiverID, bookID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
        SELECT EXISTS(
            SELECT 1 FROM swap_requests
            WHERE sender_id = $1 AND receiver_id = $2 AND requested_book_id = $3
        )
    `, senderID, receiverID, bookID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка при проверке существующих заявок: %w", err)
	}
	return exists, nil
}

func (s *PostgresSwapStore) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to models.SwapStatus, now time.Time) (bool, error) {
	// Смена статуса и сброс отметок прочтения обеих сторон в одном запросе
	tag, err := s.pool.Exec(ctx, `
        UPDATE swap_requests
        SET status = $2, updated_at = $3, read_by_sender_at = NULL, read_by_receiver_at = NULL
        WHERE id = $1 AND status = $4
    `, id, to, now, from)
	if err != nil {
		return false, fmt.Errorf("ошибка при обновлении статуса заявки %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresSwapStore) ClearReadFor(ctx context.Context, id uuid.UUID, party uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
        UPDATE swap_requests
        SET read_by_sender_at   = CASE WHEN sender_id   = $2 THEN NULL ELSE read_by_sender_at END,
            read_by_receiver_at = CASE WHEN receiver_id = $2 THEN NULL ELSE read_by_receiver_at END
        WHERE id = $1
    `, id, party)
	if err != nil {
		return fmt.Errorf("ошибка при сбросе отметки прочтения заявки %s: %w", id, err)
	}
	return nil
}

func (s *PostgresSwapStore) MarkReadFor(ctx context.Context, id uuid.UUID, party uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
        UPDATE swap_requests
        SET read_by_sender_at   = CASE WHEN sender_id = $2 AND read_by_sender_at IS NULL THEN $3 ELSE read_by_sender_at END,
            read_by_receiver_at = CASE WHEN receiver_id = $2 AND read_by_receiver_at IS NULL THEN $3 ELSE read_by_receiver_at END
        WHERE id = $1
    `, id, party, at)
	if err != nil {
		return fmt.Errorf("ошибка при проставлении отметки прочтения заявки %s: %w", id, err)
	}
	return nil
}
