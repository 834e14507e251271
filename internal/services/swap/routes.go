package swap

import (
	"github.com/gofiber/fiber/v3"

	"github.com/swapshelf/swapshelf-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *SwapService) SetupRoutes(app *fiber.App) {
	// Группа для API обменов
	api := app.Group("/api/swaps")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Маршрут для создания заявки на обмен
	api.Post("/", s.CreateSwapRequest)

	// Маршрут для получения единого инбокса
	api.Get("/inbox", s.GetInbox)

	// Маршрут для получения одной строки инбокса
	api.Get("/:id", s.GetInboxItem)

	// Маршрут для обновления статуса заявки
	api.Put("/:id/status", s.UpdateSwapStatus)

	// Маршрут для отметки заявки прочитанной
	api.Post("/:id/read", s.MarkInboxItemRead)
}
