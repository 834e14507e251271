package notify

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType определяет тип изменения строки инбокса
type EventType string

const (
	EventStatusChange EventType = "status_change"
	EventNewMessage   EventType = "new_message"
)

// Event описывает изменение вида заявки для конкретного пользователя
type Event struct {
	UserID        uuid.UUID `json:"user_id"`
	SwapRequestID uuid.UUID `json:"swap_request_id"`
	Type          EventType `json:"type"`
	At            time.Time `json:"at"`
}

// Handler обрабатывает событие шины
type Handler func(event Event)

// Bus определяет шину дельта-уведомлений
type Bus interface {
	// Publish объявляет изменение вида заявки для пользователя.
	// Публикация не блокирует и не проваливает вызвавшую мутацию.
	Publish(userID, swapRequestID uuid.UUID, eventType EventType)
	Subscribe(handler Handler)
}

// InProcessBus реализует Bus внутри процесса
type InProcessBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewInProcessBus создает новый экземпляр InProcessBus
func NewInProcessBus() *InProcessBus {
	return &InProcessBus{}
}

var _ Bus = (*InProcessBus)(nil)

func (b *InProcessBus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish рассылает событие всем подписчикам в отдельных горутинах.
// Паника подписчика логируется и не затрагивает остальных.
func (b *InProcessBus) Publish(userID, swapRequestID uuid.UUID, eventType EventType) {
	event := Event{
		UserID:        userID,
		SwapRequestID: swapRequestID,
		Type:          eventType,
		At:            time.Now(),
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Паника в обработчике уведомлений: %v", r)
				}
			}()
			h(event)
		}(h)
	}
}
