package main

import (
	"log"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/swapshelf/swapshelf-api/internal/cache"
	"github.com/swapshelf/swapshelf-api/internal/chat"
	"github.com/swapshelf/swapshelf-api/internal/config"
	"github.com/swapshelf/swapshelf-api/internal/db"
	"github.com/swapshelf/swapshelf-api/internal/inbox"
	"github.com/swapshelf/swapshelf-api/internal/notify"
	"github.com/swapshelf/swapshelf-api/internal/services/auth"
	chatservice "github.com/swapshelf/swapshelf-api/internal/services/chat"
	"github.com/swapshelf/swapshelf-api/internal/services/cloudinary"
	"github.com/swapshelf/swapshelf-api/internal/services/swap"
	"github.com/swapshelf/swapshelf-api/internal/store"
	"github.com/swapshelf/swapshelf-api/internal/swaps"
	"github.com/swapshelf/swapshelf-api/internal/websocket"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	// Инициализируем базу данных
	pool, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer pool.Close()

	// Подключаемся к Redis для кеша счетчиков непрочитанных
	redisCache, err := cache.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к Redis: %v", err)
	}
	defer redisCache.Close()

	// Хранилища
	swapStore := store.NewPostgresSwapStore(pool)
	messageStore := store.NewPostgresMessageStore(pool)
	bookStore := store.NewPostgresBookStore(pool)
	userStore := store.NewPostgresUserStore(pool)

	// Шина событий и доменные компоненты
	bus := notify.NewInProcessBus()
	workflow := swaps.NewWorkflow(swapStore, bookStore, bus)
	gate := chat.NewGate(swapStore, messageStore, redisCache, bus, cfg.UnreadCacheTTL)
	aggregator := inbox.NewAggregator(swapStore, messageStore, bookStore, userStore, gate, workflow)

	// WebSocket-менеджер и доставка инкрементальных обновлений инбокса
	wsManager := websocket.NewManager()
	defer wsManager.Shutdown()
	notify.NewDeltaNotifier(bus, aggregator, wsManager)

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "SwapShelf API (MVP)",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	// Создаём сервисы
	authService := auth.NewAuthService(cfg, userStore)
	swapService := swap.NewSwapService(cfg, workflow, aggregator)
	chatService := chatservice.NewChatService(cfg, gate)
	cloudinaryService := cloudinary.NewCloudinaryService(cfg)

	// Регистрируем маршруты
	authService.SetupRoutes(app)
	swapService.SetupRoutes(app)
	chatService.SetupRoutes(app)
	cloudinaryService.SetupRoutes(app)

	// WebSocket живет на отдельном порту: fasthttp не отдает
	// соединение под hijack, а gorilla его требует
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/ws", websocket.Handler(wsManager, authService.GetJWTService()))
		log.Println("✅ WebSocket сервер запущен на порту 8081")
		log.Fatal(http.ListenAndServe(":8081", mux))
	}()

	// Запускаем сервер
	log.Println("✅ SwapShelf API запущен на порту 8080")
	log.Fatal(app.Listen(":8080"))
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Проверяем, является ли ошибка из Fiber
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
