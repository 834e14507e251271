package swaps

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/swapshelf/swapshelf-api/internal/models"
	"github.com/swapshelf/swapshelf-api/internal/notify"
	"github.com/swapshelf/swapshelf-api/internal/store"
)

// transitionKey задает ребро графа статусов
type transitionKey struct {
	From models.SwapStatus
	To   models.SwapStatus
}

// transitionRule описывает, какая сторона вправе выполнить переход
type transitionRule struct {
	Sender   bool
	Receiver bool
}

// transitionTable перечисляет все допустимые переходы статусов.
// Любой переход вне таблицы недопустим независимо от вызвавшей стороны.
var transitionTable = map[transitionKey]transitionRule{
	{models.StatusPending, models.StatusAccepted}:  {Receiver: true},
	{models.StatusPending, models.StatusRejected}:  {Receiver: true},
	{models.StatusPending, models.StatusExpired}:   {Sender: true, Receiver: true},
	{models.StatusAccepted, models.StatusReserved}: {Receiver: true},
	{models.StatusAccepted, models.StatusExpired}:  {Receiver: true},
	{models.StatusReserved, models.StatusExpired}:  {Receiver: true},
}

// Workflow управляет жизненным циклом заявки на обмен
type Workflow struct {
	swaps store.SwapStore
	books store.BookStore
	bus   notify.Bus
	now   func() time.Time
}

// NewWorkflow создает новый экземпляр Workflow
func NewWorkflow(swaps store.SwapStore, books store.BookStore, bus notify.Bus) *Workflow {
	return &Workflow{
		swaps: swaps,
		books: books,
		bus:   bus,
		now:   time.Now,
	}
}

// CreateParams содержит данные для создания заявки на обмен
type CreateParams struct {
	SenderID        uuid.UUID
	ReceiverID      uuid.UUID
	RequestedBookID uuid.UUID
	SwapType        models.SwapType
	OfferedBookID   *uuid.UUID
	OfferedGenreID  *uuid.UUID
	AskForGiveaway  bool
	Note            string
}

// Create создает новую заявку на обмен в статусе pending
func (w *Workflow) Create(ctx context.Context, params CreateParams) (*models.SwapRequest, error) {
	if params.SenderID == params.ReceiverID {
		return nil, ErrSelfSwap
	}

	// Защита от повторной отправки: одна пара сторон и книга, любой статус
	exists, err := w.swaps.ExistsByParties(ctx, params.SenderID, params.ReceiverID, params.RequestedBookID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateRequest
	}

	book, err := w.books.GetByID(ctx, params.RequestedBookID)
	if err != nil {
		return nil, err
	}
	if book.OwnerID != params.ReceiverID {
		return nil, ErrBookNotOwnedByReceiver
	}

	// Предложение проверяется только при создании, повторно не валидируется
	if params.OfferedBookID != nil && !containsID(book.SwappableBookIDs, *params.OfferedBookID) {
		return nil, ErrOfferNotSwappable
	}
	if params.OfferedGenreID != nil && !containsID(book.SwappableGenreIDs, *params.OfferedGenreID) {
		return nil, ErrOfferNotSwappable
	}

	now := w.now()
	swap := &models.SwapRequest{
		ID:              uuid.New(),
		SenderID:        params.SenderID,
		ReceiverID:      params.ReceiverID,
		RequestedBookID: params.RequestedBookID,
		SwapType:        params.SwapType,
		OfferedBookID:   params.OfferedBookID,
		OfferedGenreID:  params.OfferedGenreID,
		AskForGiveaway:  params.AskForGiveaway,
		Status:          models.StatusPending,
		Note:            params.Note,
		RequestedAt:     now,
		UpdatedAt:       now,
		// Отметки прочтения не проставлены: заявка не прочитана обеими
		// сторонами, чтобы получатель гарантированно получил уведомление
	}

	if err := w.swaps.Create(ctx, swap); err != nil {
		return nil, err
	}

	w.bus.Publish(swap.SenderID, swap.ID, notify.EventStatusChange)
	w.bus.Publish(swap.ReceiverID, swap.ID, notify.EventStatusChange)

	return swap, nil
}

// Transition выполняет переход статуса заявки от имени стороны actorID.
// Переход проверяется по таблице, обновление в хранилище условное:
// проигравший гонку вызов получает InvalidTransitionError
func (w *Workflow) Transition(ctx context.Context, swapID uuid.UUID, to models.SwapStatus, actorID uuid.UUID) (*models.SwapRequest, error) {
	swap, err := w.swaps.GetByID(ctx, swapID)
	if err != nil {
		return nil, err
	}

	if !swap.IsParty(actorID) {
		return nil, ErrAccessDenied
	}

	rule, ok := transitionTable[transitionKey{From: swap.Status, To: to}]
	if !ok {
		return nil, &InvalidTransitionError{From: swap.Status, To: to}
	}

	isSender := swap.SenderID == actorID
	if (isSender && !rule.Sender) || (!isSender && !rule.Receiver) {
		return nil, ErrNotAuthorized
	}

	now := w.now()
	updated, err := w.swaps.UpdateStatusIf(ctx, swapID, swap.Status, to, now)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Статус уже сменился конкурентным вызовом; сообщаем актуальное
		// состояние, чтобы клиент мог показать осмысленную ошибку
		if current, err := w.swaps.GetByID(ctx, swapID); err == nil {
			return nil, &InvalidTransitionError{From: current.Status, To: to}
		}
		return nil, &InvalidTransitionError{From: swap.Status, To: to}
	}

	swap.Status = to
	swap.UpdatedAt = now
	swap.ReadBySenderAt = nil
	swap.ReadByReceiverAt = nil

	// Вид заявки изменился для обеих сторон
	w.bus.Publish(swap.SenderID, swap.ID, notify.EventStatusChange)
	w.bus.Publish(swap.ReceiverID, swap.ID, notify.EventStatusChange)

	return swap, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
