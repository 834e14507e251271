package chat

import (
	"github.com/gofiber/fiber/v3"

	"github.com/swapshelf/swapshelf-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API переписки
func (s *ChatService) SetupRoutes(app *fiber.App) {
	// Переписка привязана к заявке на обмен
	api := app.Group("/api/swaps")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Маршрут для получения сообщений заявки
	api.Get("/:id/messages", s.GetMessages)

	// Маршрут для отправки сообщения
	api.Post("/:id/messages", s.SendMessage)

	// Маршрут для отметки сообщений прочитанными
	api.Post("/:id/messages/read", s.MarkMessagesRead)

	// Маршрут для получения числа непрочитанных сообщений
	api.Get("/:id/unread", s.GetUnreadCount)
}
