package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/swapshelf/swapshelf-api/internal/models"
)

// RowSource отдает одну свежую строку инбокса для пользователя
type RowSource interface {
	InboxItem(ctx context.Context, userID, swapRequestID uuid.UUID) (*models.InboxItem, error)
}

// Sink доставляет строку инбокса в активные сессии пользователя.
// Возвращает false, если у пользователя нет активных сессий.
type Sink interface {
	DeliverInboxDelta(userID uuid.UUID, eventType EventType, item *models.InboxItem) bool
}

// DeltaNotifier слушает шину и на каждое событие пересчитывает одну
// затронутую строку инбокса вместо полного списка
type DeltaNotifier struct {
	source RowSource
	sink   Sink
}

// NewDeltaNotifier создает DeltaNotifier и подписывает его на шину
func NewDeltaNotifier(bus Bus, source RowSource, sink Sink) *DeltaNotifier {
	n := &DeltaNotifier{source: source, sink: sink}
	bus.Subscribe(n.handle)
	return n
}

func (n *DeltaNotifier) handle(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	item, err := n.source.InboxItem(ctx, event.UserID, event.SwapRequestID)
	if err != nil {
		log.Printf("Ошибка пересчета строки инбокса (user=%s swap=%s): %v",
			event.UserID, event.SwapRequestID, err)
		return
	}

	// Пользователь без активных сессий просто не получит дельту:
	// при следующем запросе инбокса он увидит актуальное состояние
	n.sink.DeliverInboxDelta(event.UserID, event.Type, item)
}
