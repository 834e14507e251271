package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/swapshelf/swapshelf-api/internal/cache"
	"github.com/swapshelf/swapshelf-api/internal/models"
	"github.com/swapshelf/swapshelf-api/internal/notify"
	"github.com/swapshelf/swapshelf-api/internal/store"
	"github.com/swapshelf/swapshelf-api/internal/swaps"
)

// ErrEmptyMessage возвращается, когда сообщение не содержит ни текста,
// ни изображений
var ErrEmptyMessage = errors.New("сообщение не может быть пустым")

// Gate управляет доступом к переписке заявки и учетом непрочитанных
// сообщений. Счетчик непрочитанных кешируется с коротким TTL и
// сбрасывается в той же операции, что меняет его значение.
type Gate struct {
	swaps    store.SwapStore
	messages store.MessageStore
	cache    cache.Cache
	bus      notify.Bus
	ttl      time.Duration
	now      func() time.Time
}

// NewGate создает новый экземпляр Gate
func NewGate(swapStore store.SwapStore, messages store.MessageStore, c cache.Cache, bus notify.Bus, ttl time.Duration) *Gate {
	return &Gate{
		swaps:    swapStore,
		messages: messages,
		cache:    c,
		bus:      bus,
		ttl:      ttl,
		now:      time.Now,
	}
}

// unreadKey формирует ключ кеша счетчика непрочитанных: сторона и заявка
func unreadKey(userID, swapID uuid.UUID) string {
	return fmt.Sprintf("unread:%s:%s", userID, swapID)
}

// SendMessage отправляет сообщение в переписку заявки. Вторая сторона
// получает дельта-уведомление, ее отметка прочтения заявки и кеш
// счетчика сбрасываются
func (g *Gate) SendMessage(ctx context.Context, swapID, senderID uuid.UUID, text string, images []string) (*models.ChatMessage, error) {
	swap, err := g.swaps.GetByID(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !swap.IsParty(senderID) {
		return nil, swaps.ErrAccessDenied
	}
	if text == "" && len(images) == 0 {
		return nil, ErrEmptyMessage
	}

	msg := &models.ChatMessage{
		ID:            uuid.New(),
		SwapRequestID: swapID,
		SenderID:      senderID,
		Text:          text,
		Images:        images,
		SentAt:        g.now(),
	}
	if err := g.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	other := swap.OtherParty(senderID)

	// Новое сообщение делает заявку непрочитанной для второй стороны
	if err := g.swaps.ClearReadFor(ctx, swapID, other); err != nil {
		log.Printf("Ошибка сброса отметки прочтения заявки %s: %v", swapID, err)
	}

	g.evict(ctx, other, swapID)
	g.bus.Publish(other, swapID, notify.EventNewMessage)

	return msg, nil
}

// Messages возвращает сообщения заявки от новых к старым и помечает
// чужие сообщения прочитанными для читающей стороны
func (g *Gate) Messages(ctx context.Context, swapID, userID uuid.UUID, limit int, before *uuid.UUID) ([]*models.ChatMessage, error) {
	swap, err := g.swaps.GetByID(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !swap.IsParty(userID) {
		return nil, swaps.ErrAccessDenied
	}

	messages, err := g.messages.ListBySwap(ctx, swapID, limit, before)
	if err != nil {
		return nil, err
	}

	// Прочтение ленты равносильно прочтению сообщений
	if err := g.markRead(ctx, swapID, userID); err != nil {
		log.Printf("Ошибка обновления статуса прочтения заявки %s: %v", swapID, err)
	}

	return messages, nil
}

// MarkMessagesRead помечает прочитанными все чужие сообщения заявки
func (g *Gate) MarkMessagesRead(ctx context.Context, swapID, userID uuid.UUID) error {
	swap, err := g.swaps.GetByID(ctx, swapID)
	if err != nil {
		return err
	}
	if !swap.IsParty(userID) {
		return swaps.ErrAccessDenied
	}
	return g.markRead(ctx, swapID, userID)
}

func (g *Gate) markRead(ctx context.Context, swapID, userID uuid.UUID) error {
	if err := g.messages.MarkRead(ctx, swapID, userID); err != nil {
		return err
	}
	g.evict(ctx, userID, swapID)
	return nil
}

// UnreadCount возвращает число непрочитанных пользователем сообщений
// заявки. Значение мемоизируется в кеше; промах или ошибка кеша
// означают пересчет из хранилища
func (g *Gate) UnreadCount(ctx context.Context, swapID, userID uuid.UUID) (int, error) {
	swap, err := g.swaps.GetByID(ctx, swapID)
	if err != nil {
		return 0, err
	}
	if !swap.IsParty(userID) {
		return 0, swaps.ErrAccessDenied
	}

	key := unreadKey(userID, swapID)
	if cached, err := g.cache.Get(ctx, key); err == nil {
		if count, err := strconv.Atoi(cached); err == nil {
			return count, nil
		}
	} else if err != cache.ErrMiss {
		log.Printf("Ошибка чтения кеша %s: %v", key, err)
	}

	count, err := g.messages.CountUnread(ctx, swapID, userID)
	if err != nil {
		return 0, err
	}

	if err := g.cache.Set(ctx, key, strconv.Itoa(count), g.ttl); err != nil {
		log.Printf("Ошибка записи кеша %s: %v", key, err)
	}

	return count, nil
}

// EvictUnreadCount сбрасывает кеш счетчика непрочитанных стороны заявки
func (g *Gate) EvictUnreadCount(ctx context.Context, userID, swapID uuid.UUID) {
	g.evict(ctx, userID, swapID)
}

func (g *Gate) evict(ctx context.Context, userID, swapID uuid.UUID) {
	key := unreadKey(userID, swapID)
	if _, err := g.cache.Del(ctx, key); err != nil {
		// Хранилище остается источником истины, промах кеша означает пересчет
		log.Printf("Ошибка сброса кеша %s: %v", key, err)
	}
}
