package cloudinary

import (
	"github.com/gofiber/fiber/v3"

	"github.com/swapshelf/swapshelf-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для выдачи параметров загрузки
func (s *CloudinaryService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(s.jwtService))

	// Подписанные параметры для прямой загрузки изображений книг и сообщений
	protected.Get("/upload/params", s.GenerateUploadParams)
}
