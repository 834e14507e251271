package inbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/swapshelf/swapshelf-api/internal/chat"
	"github.com/swapshelf/swapshelf-api/internal/models"
	"github.com/swapshelf/swapshelf-api/internal/store"
	"github.com/swapshelf/swapshelf-api/internal/swaps"
)

// ErrInvalidStatus возвращается при нераспознанном фильтре статуса
var ErrInvalidStatus = errors.New("недопустимый статус для фильтра")

// Aggregator собирает единый инбокс пользователя: отправленные и
// полученные заявки с производными полями и выбранной сортировкой
type Aggregator struct {
	swapStore store.SwapStore
	messages  store.MessageStore
	books     store.BookStore
	users     store.UserStore
	gate      *chat.Gate
	workflow  *swaps.Workflow
	now       func() time.Time
}

// NewAggregator создает новый экземпляр Aggregator
func NewAggregator(
	swapStore store.SwapStore,
	messages store.MessageStore,
	books store.BookStore,
	users store.UserStore,
	gate *chat.Gate,
	workflow *swaps.Workflow,
) *Aggregator {
	return &Aggregator{
		swapStore: swapStore,
		messages:  messages,
		books:     books,
		users:     users,
		gate:      gate,
		workflow:  workflow,
		now:       time.Now,
	}
}

// UnifiedInbox возвращает отсортированный инбокс пользователя.
// statusFilter и sortBy передаются сырыми строками запроса; пустой
// фильтр означает все статусы, нераспознанный ключ сортировки
// откатывается к сортировке по последнему сообщению
func (a *Aggregator) UnifiedInbox(ctx context.Context, userID uuid.UUID, statusFilter, sortBy string) ([]*models.InboxItem, error) {
	var status *models.SwapStatus
	if statusFilter != "" {
		parsed, err := models.ParseSwapStatus(statusFilter)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, statusFilter)
		}
		status = &parsed
	}

	sent, err := a.swapStore.ListSent(ctx, userID, status)
	if err != nil {
		return nil, err
	}
	received, err := a.swapStore.ListReceived(ctx, userID, status)
	if err != nil {
		return nil, err
	}

	// Объединение без дублей: заявка не должна попасть в инбокс дважды
	seen := make(map[uuid.UUID]bool, len(sent)+len(received))
	items := make([]*models.InboxItem, 0, len(sent)+len(received))
	for _, swap := range append(sent, received...) {
		if seen[swap.ID] {
			continue
		}
		seen[swap.ID] = true
		items = append(items, a.buildItem(ctx, userID, swap))
	}

	sortItems(items, models.ParseSortKey(sortBy))
	return items, nil
}

// InboxItem возвращает одну строку инбокса; используется подписчиками
// дельта-уведомлений и клиентами для пересинхронизации строки
func (a *Aggregator) InboxItem(ctx context.Context, userID, swapID uuid.UUID) (*models.InboxItem, error) {
	swap, err := a.swapStore.GetByID(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !swap.IsParty(userID) {
		return nil, swaps.ErrAccessDenied
	}
	return a.buildItem(ctx, userID, swap), nil
}

// UpdateStatus выполняет переход статуса по запросу стороны заявки.
// Поверх таблицы переходов действует сужение: получатель может
// запросить accepted, rejected или reserved, отправитель только expired
func (a *Aggregator) UpdateStatus(ctx context.Context, swapID uuid.UUID, to models.SwapStatus, actorID uuid.UUID) (*models.SwapRequest, error) {
	swap, err := a.swapStore.GetByID(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !swap.IsParty(actorID) {
		return nil, swaps.ErrAccessDenied
	}

	if swap.SenderID == actorID {
		if to != models.StatusExpired {
			return nil, swaps.ErrNotAuthorized
		}
	} else {
		if to != models.StatusAccepted && to != models.StatusRejected && to != models.StatusReserved {
			return nil, swaps.ErrNotAuthorized
		}
	}

	updated, err := a.workflow.Transition(ctx, swapID, to, actorID)
	if err != nil {
		return nil, err
	}

	// Счетчики непрочитанных обеих сторон сбрасываются в рамках той же
	// операции, что сменила статус
	a.gate.EvictUnreadCount(ctx, updated.SenderID, swapID)
	a.gate.EvictUnreadCount(ctx, updated.ReceiverID, swapID)

	return updated, nil
}

// MarkItemRead проставляет отметку прочтения заявки для роли
// пользователя; повторный вызов ничего не меняет
func (a *Aggregator) MarkItemRead(ctx context.Context, swapID, userID uuid.UUID) error {
	swap, err := a.swapStore.GetByID(ctx, swapID)
	if err != nil {
		return err
	}
	if !swap.IsParty(userID) {
		return swaps.ErrAccessDenied
	}
	return a.swapStore.MarkReadFor(ctx, swapID, userID, a.now())
}

// buildItem собирает строку инбокса с производными полями относительно
// просматривающего пользователя
func (a *Aggregator) buildItem(ctx context.Context, userID uuid.UUID, swap *models.SwapRequest) *models.InboxItem {
	item := &models.InboxItem{
		Swap:     swap,
		IsUnread: swap.ReadAt(userID) == nil,
	}
	if swap.SenderID == userID {
		item.ConversationType = models.ConversationSent
	} else {
		item.ConversationType = models.ConversationReceived
	}

	count, err := a.gate.UnreadCount(ctx, swap.ID, userID)
	if err != nil {
		log.Printf("Ошибка подсчета непрочитанных сообщений заявки %s: %v", swap.ID, err)
	} else {
		item.UnreadMessages = count
	}

	latest, err := a.messages.Latest(ctx, swap.ID)
	if err != nil {
		log.Printf("Ошибка получения последнего сообщения заявки %s: %v", swap.ID, err)
	} else if latest != nil {
		item.LastMessage = &models.MessagePreview{
			Text:        latest.Text,
			SenderID:    latest.SenderID,
			SentAt:      latest.SentAt,
			IsImageOnly: latest.IsImageOnly(),
		}
	}

	// Данные книги и сторон нужны API и стратегиям сортировки
	if swap.RequestedBook == nil {
		if book, err := a.books.GetByID(ctx, swap.RequestedBookID); err == nil {
			swap.RequestedBook = book
		} else {
			log.Printf("Ошибка получения книги %s: %v", swap.RequestedBookID, err)
		}
	}
	if swap.OfferedBookID != nil && swap.OfferedBook == nil {
		if book, err := a.books.GetByID(ctx, *swap.OfferedBookID); err == nil {
			swap.OfferedBook = book
		}
	}
	if swap.Sender == nil {
		if user, err := a.users.GetByID(ctx, swap.SenderID); err == nil {
			swap.Sender = user
		} else {
			log.Printf("Ошибка получения пользователя %s: %v", swap.SenderID, err)
		}
	}
	if swap.Receiver == nil {
		if user, err := a.users.GetByID(ctx, swap.ReceiverID); err == nil {
			swap.Receiver = user
		}
	}

	return item
}
