package chat

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/swapshelf/swapshelf-api/internal/chat"
	"github.com/swapshelf/swapshelf-api/internal/config"
	"github.com/swapshelf/swapshelf-api/internal/db"
	"github.com/swapshelf/swapshelf-api/internal/store"
	"github.com/swapshelf/swapshelf-api/internal/swaps"
	"github.com/swapshelf/swapshelf-api/internal/utils"
)

// ChatService представляет сервис для работы с перепиской по заявкам
type ChatService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	gate       *chat.Gate
}

// NewChatService создает новый экземпляр ChatService
func NewChatService(cfg *config.Config, gate *chat.Gate) *ChatService {
	return &ChatService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		gate:       gate,
	}
}

// GetMessages возвращает сообщения переписки заявки
func (s *ChatService) GetMessages(c fiber.Ctx) error {
	userUUID, swapUUID, errResp := s.parseIDs(c)
	if errResp != nil {
		return errResp(c)
	}

	limit := 50 // Ограничение количества сообщений

	// Обрабатываем пагинацию
	var before *uuid.UUID
	if beforeParam := c.Query("before"); beforeParam != "" {
		beforeUUID, err := uuid.Parse(beforeParam)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID сообщения"})
		}
		before = &beforeUUID
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	messages, err := s.gate.Messages(ctx, swapUUID, userUUID, limit, before)
	if err != nil {
		return s.mapError(c, err, "Ошибка получения сообщений")
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"has_more": len(messages) == limit,
	})
}

// SendMessage отправляет новое сообщение в переписку заявки
func (s *ChatService) SendMessage(c fiber.Ctx) error {
	userUUID, swapUUID, errResp := s.parseIDs(c)
	if errResp != nil {
		return errResp(c)
	}

	var requestData struct {
		Text   string   `json:"text"`
		Images []string `json:"images,omitempty"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	message, err := s.gate.SendMessage(ctx, swapUUID, userUUID, requestData.Text, requestData.Images)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Сообщение не может быть пустым"})
		}
		return s.mapError(c, err, "Ошибка сохранения сообщения")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"success": true,
	})
}

// MarkMessagesRead помечает прочитанными все чужие сообщения заявки
func (s *ChatService) MarkMessagesRead(c fiber.Ctx) error {
	userUUID, swapUUID, errResp := s.parseIDs(c)
	if errResp != nil {
		return errResp(c)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.gate.MarkMessagesRead(ctx, swapUUID, userUUID); err != nil {
		return s.mapError(c, err, "Ошибка обновления статуса прочтения")
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetUnreadCount возвращает число непрочитанных сообщений заявки
func (s *ChatService) GetUnreadCount(c fiber.Ctx) error {
	userUUID, swapUUID, errResp := s.parseIDs(c)
	if errResp != nil {
		return errResp(c)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	count, err := s.gate.UnreadCount(ctx, swapUUID, userUUID)
	if err != nil {
		return s.mapError(c, err, "Ошибка подсчета непрочитанных сообщений")
	}

	return c.JSON(fiber.Map{"unread_count": count})
}

// parseIDs извлекает ID пользователя и заявки из запроса
func (s *ChatService) parseIDs(c fiber.Ctx) (uuid.UUID, uuid.UUID, func(fiber.Ctx) error) {
	userID := c.Locals("userID").(string)

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, func(c fiber.Ctx) error {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
		}
	}

	swapUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, func(c fiber.Ctx) error {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID заявки"})
		}
	}

	return userUUID, swapUUID, nil
}

// mapError преобразует доменные ошибки в HTTP-ответы
func (s *ChatService) mapError(c fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, store.ErrSwapNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Заявка на обмен не найдена"})
	case errors.Is(err, swaps.ErrAccessDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "У вас нет доступа к этой переписке"})
	}
	log.Printf("%s: %v", fallback, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}
