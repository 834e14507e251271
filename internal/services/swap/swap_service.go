package swap

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/swapshelf/swapshelf-api/internal/config"
	"github.com/swapshelf/swapshelf-api/internal/db"
	"github.com/swapshelf/swapshelf-api/internal/inbox"
	"github.com/swapshelf/swapshelf-api/internal/models"
	"github.com/swapshelf/swapshelf-api/internal/store"
	"github.com/swapshelf/swapshelf-api/internal/swaps"
	"github.com/swapshelf/swapshelf-api/internal/utils"
)

// SwapService представляет сервис для работы с заявками на обмен
type SwapService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	workflow   *swaps.Workflow
	aggregator *inbox.Aggregator
}

// NewSwapService создает новый экземпляр SwapService
func NewSwapService(cfg *config.Config, workflow *swaps.Workflow, aggregator *inbox.Aggregator) *SwapService {
	return &SwapService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		workflow:   workflow,
		aggregator: aggregator,
	}
}

// CreateSwapRequest создает новую заявку на обмен
func (s *SwapService) CreateSwapRequest(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	senderID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	// Извлекаем данные из запроса
	var requestData struct {
		ReceiverID      string  `json:"receiver_id"`
		RequestedBookID string  `json:"requested_book_id"`
		SwapType        string  `json:"swap_type"`
		OfferedBookID   *string `json:"offered_book_id,omitempty"`
		OfferedGenreID  *string `json:"offered_genre_id,omitempty"`
		AskForGiveaway  bool    `json:"ask_for_giveaway"`
		Note            string  `json:"note,omitempty"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	if requestData.ReceiverID == "" || requestData.RequestedBookID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Необходимо указать получателя и запрашиваемую книгу"})
	}

	receiverID, err := uuid.Parse(requestData.ReceiverID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID получателя"})
	}

	bookID, err := uuid.Parse(requestData.RequestedBookID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID книги"})
	}

	swapType, err := models.ParseSwapType(requestData.SwapType)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Недопустимый тип обмена"})
	}

	params := swaps.CreateParams{
		SenderID:        senderID,
		ReceiverID:      receiverID,
		RequestedBookID: bookID,
		SwapType:        swapType,
		AskForGiveaway:  requestData.AskForGiveaway,
		Note:            requestData.Note,
	}

	if requestData.OfferedBookID != nil {
		offered, err := uuid.Parse(*requestData.OfferedBookID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предложенной книги"})
		}
		params.OfferedBookID = &offered
	}
	if requestData.OfferedGenreID != nil {
		offered, err := uuid.Parse(*requestData.OfferedGenreID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предложенного жанра"})
		}
		params.OfferedGenreID = &offered
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	swap, err := s.workflow.Create(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, swaps.ErrSelfSwap):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Вы не можете предложить обмен самому себе"})
		case errors.Is(err, swaps.ErrDuplicateRequest):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Такая заявка на обмен уже существует"})
		case errors.Is(err, store.ErrBookNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Запрашиваемая книга не найдена"})
		case errors.Is(err, swaps.ErrBookNotOwnedByReceiver):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Запрашиваемая книга не принадлежит получателю"})
		case errors.Is(err, swaps.ErrOfferNotSwappable):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Предложение не входит в список допустимых для обмена"})
		}
		log.Printf("Ошибка создания заявки на обмен: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка сохранения заявки на обмен"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"swap":    swap,
	})
}

// GetInbox возвращает единый инбокс пользователя: отправленные и
// полученные заявки с фильтром по статусу и выбранной сортировкой
func (s *SwapService) GetInbox(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID пользователя"})
	}

	statusFilter := c.Query("status")
	sortBy := c.Query("sort", string(models.SortByLatestMessage))

	ctx, cancel := db.GetContext()
	defer cancel()

	items, err := s.aggregator.UnifiedInbox(ctx, userUUID, statusFilter, sortBy)
	if err != nil {
		if errors.Is(err, inbox.ErrInvalidStatus) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Недопустимый статус для фильтра"})
		}
		log.Printf("Ошибка получения инбокса пользователя %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Ошибка получения инбокса"})
	}

	return c.JSON(fiber.Map{
		"items": items,
		"count": len(items),
	})
}

// GetInboxItem возвращает одну строку инбокса; используется клиентами
// для пересинхронизации после push-уведомления
func (s *SwapService) GetInboxItem(c fiber.Ctx) error {
	userUUID, swapUUID, errResp := s.parseIDs(c)
	if errResp != nil {
		return errResp(c)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := s.aggregator.InboxItem(ctx, userUUID, swapUUID)
	if err != nil {
		return s.mapError(c, err, "Ошибка получения строки инбокса")
	}

	return c.JSON(fiber.Map{"item": item})
}

// UpdateSwapStatus обновляет статус заявки на обмен
func (s *SwapService) UpdateSwapStatus(c fiber.Ctx) error {
	userUUID, swapUUID, errResp := s.parseIDs(c)
	if errResp != nil {
		return errResp(c)
	}

	var requestData struct {
		Status string `json:"status"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	newStatus, err := models.ParseSwapStatus(requestData.Status)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Недопустимый статус заявки"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	swap, err := s.aggregator.UpdateStatus(ctx, swapUUID, newStatus, userUUID)
	if err != nil {
		var invalid *swaps.InvalidTransitionError
		if errors.As(err, &invalid) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":            "Недопустимый переход статуса",
				"current_status":   invalid.From,
				"requested_status": invalid.To,
			})
		}
		return s.mapError(c, err, "Ошибка обновления статуса заявки")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"swap_id": swap.ID,
		"status":  swap.Status,
	})
}

// MarkInboxItemRead проставляет отметку прочтения заявки для вызывающей
// стороны; повторный вызов ничего не меняет
func (s *SwapService) MarkInboxItemRead(c fiber.Ctx) error {
	userUUID, swapUUID, errResp := s.parseIDs(c)
	if errResp != nil {
		return errResp(c)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.aggregator.MarkItemRead(ctx, swapUUID, userUUID); err != nil {
		return s.mapError(c, err, "Ошибка обновления отметки прочтения")
	}

	return c.JSON(fiber.Map{"success": true})
}

// parseIDs извлекает ID пользователя и заявки из запроса
func (s *SwapService) parseIDs(c fiber.Ctx) (uuid.UUID, uuid.UUID, func(fiber.Ctx) error) {
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
func (s *SwapService) mapError(c fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, store.ErrSwapNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Заявка на обмен не найдена"})
	case errors.Is(err, swaps.ErrAccessDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Вы не являетесь стороной этой заявки"})
	case errors.Is(err, swaps.ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Вы не вправе запросить этот статус"})
	}
	log.Printf("%s: %v", fallback, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}
