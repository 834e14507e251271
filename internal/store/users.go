package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swapshelf/swapshelf-api/internal/models"
)

// TelegramProfile представляет данные пользователя из Telegram initData
type TelegramProfile struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	PhotoURL     string
	IsPremium    bool
	LanguageCode string
	RawData      []byte
}

// UserStore определяет операции хранения пользователей
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpsertTelegramUser создает пользователя при первом входе через
	// Telegram или обновляет его профиль при повторном
	UpsertTelegramUser(ctx context.Context, profile TelegramProfile) (*models.User, error)
}

// PostgresUserStore реализует UserStore поверх PostgreSQL
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStore создает новый экземпляр PostgresUserStore
func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

var _ UserStore = (*PostgresUserStore)(nil)

func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	var username, firstName, lastName, avatarURL pgtype.Text

	err := s.pool.QueryRow(ctx, `
        SELECT id, username, first_name, last_name, avatar_url
        FROM users
        WHERE id = $1
    `, id).Scan(&user.ID, &username, &firstName, &lastName, &avatarURL)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка при получении пользователя %s: %w", id, err)
	}

	// Преобразуем nullable поля
	if username.Valid {
		user.Username = username.String
	}
	if firstName.Valid {
		user.FirstName = firstName.String
	}
	if lastName.Valid {
		user.LastName = lastName.String
	}
	if avatarURL.Valid {
		user.AvatarURL = avatarURL.String
	}

	return &user, nil
}

func (s *PostgresUserStore) UpsertTelegramUser(ctx context.Context, profile TelegramProfile) (*models.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Проверяем, существует ли пользователь Telegram
	var userID uuid.UUID
	err = tx.QueryRow(ctx, `
        SELECT user_id FROM telegram_users WHERE telegram_id = $1
    `, profile.TelegramID).Scan(&userID)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("ошибка при проверке существования пользователя Telegram: %w", err)
	}

	if err == pgx.ErrNoRows {
		// Создаем запись в users
		err = tx.QueryRow(ctx, `
            INSERT INTO users (first_name, last_name, username, avatar_url, last_login_at)
            VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
            RETURNING id
        `, profile.FirstName, profile.LastName, profile.Username, profile.PhotoURL).Scan(&userID)
		if err != nil {
			return nil, fmt.Errorf("ошибка при создании пользователя: %w", err)
		}

		// Создаем запись в telegram_users
		_, err = tx.Exec(ctx, `
            INSERT INTO telegram_users (user_id, telegram_id, username, first_name, last_name,
                                        photo_url, is_premium, language_code, raw_data)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        `, userID, profile.TelegramID, profile.Username, profile.FirstName, profile.LastName,
			profile.PhotoURL, profile.IsPremium, profile.LanguageCode, profile.RawData)
		if err != nil {
			return nil, fmt.Errorf("ошибка при создании Telegram пользователя: %w", err)
		}
	} else {
		// Обновляем время входа и профиль существующего пользователя
		_, err = tx.Exec(ctx, `
            UPDATE users
            SET last_login_at = CURRENT_TIMESTAMP
            WHERE id = $1
        `, userID)
		if err != nil {
			return nil, fmt.Errorf("ошибка при обновлении времени входа пользователя: %w", err)
		}

		_, err = tx.Exec(ctx, `
            UPDATE telegram_users
            SET username = $1, first_name = $2, last_name = $3, photo_url = $4,
                is_premium = $5, language_code = $6, raw_data = $7, updated_at = CURRENT_TIMESTAMP
            WHERE telegram_id = $8
        `, profile.Username, profile.FirstName, profile.LastName, profile.PhotoURL,
			profile.IsPremium, profile.LanguageCode, profile.RawData, profile.TelegramID)
		if err != nil {
			return nil, fmt.Errorf("ошибка при обновлении Telegram пользователя: %w", err)
		}
	}

	var user models.User
	var username, firstName, lastName, avatarURL pgtype.Text
	err = tx.QueryRow(ctx, `
        SELECT id, username, first_name, last_name, avatar_url
        FROM users
        WHERE id = $1
    `, userID).Scan(&user.ID, &username, &firstName, &lastName, &avatarURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}
	if username.Valid {
		user.Username = username.String
	}
	if firstName.Valid {
		user.FirstName = firstName.String
	}
	if lastName.Valid {
		user.LastName = lastName.String
	}
	if avatarURL.Valid {
		user.AvatarURL = avatarURL.String
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	return &user, nil
}
