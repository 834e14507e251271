package swaps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/swapshelf/swapshelf-api/internal/models"
	"github.com/swapshelf/swapshelf-api/internal/notify"
	"github.com/swapshelf/swapshelf-api/internal/store"
)

type busEvent struct {
	UserID uuid.UUID
	SwapID uuid.UUID
	Type   notify.EventType
}

type fakeBus struct {
	events []busEvent
}

func (b *fakeBus) Publish(userID, swapID uuid.UUID, eventType notify.EventType) {
	b.events = append(b.events, busEvent{UserID: userID, SwapID: swapID, Type: eventType})
}

func (b *fakeBus) Subscribe(notify.Handler) {}

type fakeSwapStore struct {
	swaps  map[uuid.UUID]*models.SwapRequest
	exists bool
	// beforeUpdate вызывается внутри UpdateStatusIf до проверки условия;
	// тесты используют его для имитации конкурентной смены статуса
	beforeUpdate func()
}

func newFakeSwapStore() *fakeSwapStore {
	return &fakeSwapStore{swaps: make(map[uuid.UUID]*models.SwapRequest)}
}

func (s *fakeSwapStore) Create(_ context.Context, swap *models.SwapRequest) error {
	copied := *swap
	s.swaps[swap.ID] = &copied
	return nil
}

func (s *fakeSwapStore) GetByID(_ context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	swap, ok := s.swaps[id]
	if !ok {
		return nil, store.ErrSwapNotFound
	}
	copied := *swap
	return &copied, nil
}

func (s *fakeSwapStore) ListSent(_ context.Context, userID uuid.UUID, status *models.SwapStatus) ([]*models.SwapRequest, error) {
	var out []*models.SwapRequest
	for _, swap := range s.swaps {
		if swap.SenderID == userID && (status == nil || swap.Status == *status) {
			copied := *swap
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeSwapStore) ListReceived(_ context.Context, userID uuid.UUID, status *models.SwapStatus) ([]*models.SwapRequest, error) {
	var out []*models.SwapRequest
	for _, swap := range s.swaps {
		if swap.ReceiverID == userID && (status == nil || swap.Status == *status) {
			copied := *swap
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeSwapStore) ExistsByParties(_ context.Context, _, _, _ uuid.UUID) (bool, error) {
	return s.exists, nil
}

func (s *fakeSwapStore) UpdateStatusIf(_ context.Context, id uuid.UUID, from, to models.SwapStatus, now time.Time) (bool, error) {
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}
	swap, ok := s.swaps[id]
	if !ok || swap.Status != from {
		return false, nil
	}
	swap.Status = to
	swap.UpdatedAt = now
	swap.ReadBySenderAt = nil
	swap.ReadByReceiverAt = nil
	return true, nil
}

func (s *fakeSwapStore) ClearReadFor(_ context.Context, id uuid.UUID, party uuid.UUID) error {
	swap, ok := s.swaps[id]
	if !ok {
		return store.ErrSwapNotFound
	}
	if swap.SenderID == party {
		swap.ReadBySenderAt = nil
	}
	if swap.ReceiverID == party {
		swap.ReadByReceiverAt = nil
	}
	return nil
}

func (s *fakeSwapStore) MarkReadFor(_ context.Context, id uuid.UUID, party uuid.UUID, at time.Time) error {
	swap, ok := s.swaps[id]
	if !ok {
		return store.ErrSwapNotFound
	}
	if swap.SenderID == party && swap.ReadBySenderAt == nil {
		swap.ReadBySenderAt = &at
	}
	if swap.ReceiverID == party && swap.ReadByReceiverAt == nil {
		swap.ReadByReceiverAt = &at
	}
	return nil
}

type fakeBookStore struct {
	books map[uuid.UUID]*models.Book
}

func (s *fakeBookStore) GetByID(_ context.Context, id uuid.UUID) (*models.Book, error) {
	book, ok := s.books[id]
	if !ok {
		return nil, store.ErrBookNotFound
	}
	return book, nil
}

func newTestWorkflow(swapStore *fakeSwapStore, books *fakeBookStore, bus *fakeBus) *Workflow {
	w := NewWorkflow(swapStore, books, bus)
	w.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return w
}

func TestCreateValidation(t *testing.T) {
	sender := uuid.New()
	receiver := uuid.New()
	bookID := uuid.New()
	offered := uuid.New()

	books := &fakeBookStore{books: map[uuid.UUID]*models.Book{
		bookID: {
			ID:               bookID,
			OwnerID:          receiver,
			Title:            "Мастер и Маргарита",
			SwappableBookIDs: []uuid.UUID{offered},
		},
	}}

	tests := []struct {
		name    string
		params  CreateParams
		exists  bool
		wantErr error
	}{
		{
			name:    "self swap",
			params:  CreateParams{SenderID: sender, ReceiverID: sender, RequestedBookID: bookID},
			wantErr: ErrSelfSwap,
		},
		{
			name:    "duplicate request",
			params:  CreateParams{SenderID: sender, ReceiverID: receiver, RequestedBookID: bookID},
			exists:  true,
			wantErr: ErrDuplicateRequest,
		},
		{
			name:    "unknown book",
			params:  CreateParams{SenderID: sender, ReceiverID: receiver, RequestedBookID: uuid.New()},
			wantErr: store.ErrBookNotFound,
		},
		{
			name:    "book owned by someone else",
			params:  CreateParams{SenderID: sender, ReceiverID: uuid.New(), RequestedBookID: bookID},
			wantErr: ErrBookNotOwnedByReceiver,
		},
		{
			name: "offered book not in swappable list",
			params: CreateParams{
				SenderID: sender, ReceiverID: receiver, RequestedBookID: bookID,
				OfferedBookID: ptr(uuid.New()),
			},
			wantErr: ErrOfferNotSwappable,
		},
		{
			name: "offered genre not in swappable list",
			params: CreateParams{
				SenderID: sender, ReceiverID: receiver, RequestedBookID: bookID,
				OfferedGenreID: ptr(uuid.New()),
			},
			wantErr: ErrOfferNotSwappable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swapStore := newFakeSwapStore()
			swapStore.exists = tt.exists
			w := newTestWorkflow(swapStore, books, &fakeBus{})

			_, err := w.Create(context.Background(), tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateSuccess(t *testing.T) {
	sender := uuid.New()
	receiver := uuid.New()
	bookID := uuid.New()
	offered := uuid.New()

	books := &fakeBookStore{books: map[uuid.UUID]*models.Book{
		bookID: {ID: bookID, OwnerID: receiver, SwappableBookIDs: []uuid.UUID{offered}},
	}}
	swapStore := newFakeSwapStore()
	bus := &fakeBus{}
	w := newTestWorkflow(swapStore, books, bus)

	swap, err := w.Create(context.Background(), CreateParams{
		SenderID:        sender,
		ReceiverID:      receiver,
		RequestedBookID: bookID,
		SwapType:        models.SwapTypeByBooks,
		OfferedBookID:   &offered,
		Note:            "обменяю на вашу книгу",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if swap.Status != models.StatusPending {
		t.Errorf("status = %q, want %q", swap.Status, models.StatusPending)
	}
	if swap.ReadBySenderAt != nil || swap.ReadByReceiverAt != nil {
		t.Error("новая заявка должна быть непрочитанной для обеих сторон")
	}
	if _, err := swapStore.GetByID(context.Background(), swap.ID); err != nil {
		t.Fatalf("заявка не сохранена: %v", err)
	}

	// обе стороны получают дельту о смене статуса
	if len(bus.events) != 2 {
		t.Fatalf("опубликовано %d событий, ожидалось 2", len(bus.events))
	}
	for _, e := range bus.events {
		if e.Type != notify.EventStatusChange {
			t.Errorf("тип события = %q, want %q", e.Type, notify.EventStatusChange)
		}
	}
	if bus.events[0].UserID != sender || bus.events[1].UserID != receiver {
		t.Error("события должны быть адресованы обеим сторонам заявки")
	}
}

func TestTransitionTable(t *testing.T) {
	sender := uuid.New()
	receiver := uuid.New()

	tests := []struct {
		name    string
		from    models.SwapStatus
		to      models.SwapStatus
		actor   uuid.UUID
		wantErr error
	}{
		{"receiver accepts pending", models.StatusPending, models.StatusAccepted, receiver, nil},
		{"receiver rejects pending", models.StatusPending, models.StatusRejected, receiver, nil},
		{"receiver expires pending", models.StatusPending, models.StatusExpired, receiver, nil},
		{"sender expires pending", models.StatusPending, models.StatusExpired, sender, nil},
		{"receiver reserves accepted", models.StatusAccepted, models.StatusReserved, receiver, nil},
		{"receiver expires accepted", models.StatusAccepted, models.StatusExpired, receiver, nil},
		{"receiver expires reserved", models.StatusReserved, models.StatusExpired, receiver, nil},

		{"sender accepts pending", models.StatusPending, models.StatusAccepted, sender, ErrNotAuthorized},
		{"sender rejects pending", models.StatusPending, models.StatusRejected, sender, ErrNotAuthorized},
		{"sender reserves accepted", models.StatusAccepted, models.StatusReserved, sender, ErrNotAuthorized},
		{"sender expires accepted", models.StatusAccepted, models.StatusExpired, sender, ErrNotAuthorized},
		{"sender expires reserved", models.StatusReserved, models.StatusExpired, sender, ErrNotAuthorized},

		{"pending straight to reserved", models.StatusPending, models.StatusReserved, receiver, &InvalidTransitionError{}},
		{"accepted back to pending", models.StatusAccepted, models.StatusPending, receiver, &InvalidTransitionError{}},
		{"accepted to rejected", models.StatusAccepted, models.StatusRejected, receiver, &InvalidTransitionError{}},
		{"rejected is terminal", models.StatusRejected, models.StatusAccepted, receiver, &InvalidTransitionError{}},
		{"expired is terminal", models.StatusExpired, models.StatusPending, sender, &InvalidTransitionError{}},
		{"reserved to accepted", models.StatusReserved, models.StatusAccepted, receiver, &InvalidTransitionError{}},
		{"same status", models.StatusPending, models.StatusPending, receiver, &InvalidTransitionError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swapStore := newFakeSwapStore()
			swapID := uuid.New()
			swapStore.swaps[swapID] = &models.SwapRequest{
				ID: swapID, SenderID: sender, ReceiverID: receiver, Status: tt.from,
			}
			w := newTestWorkflow(swapStore, &fakeBookStore{}, &fakeBus{})

			updated, err := w.Transition(context.Background(), swapID, tt.to, tt.actor)

			switch want := tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Fatalf("Transition() error = %v", err)
				}
				if updated.Status != tt.to {
					t.Errorf("status = %q, want %q", updated.Status, tt.to)
				}
				if updated.ReadBySenderAt != nil || updated.ReadByReceiverAt != nil {
					t.Error("смена статуса должна сбрасывать отметки прочтения обеих сторон")
				}
			case *InvalidTransitionError:
				var invalid *InvalidTransitionError
				if !errors.As(err, &invalid) {
					t.Fatalf("Transition() error = %v, want InvalidTransitionError", err)
				}
				if invalid.From != tt.from || invalid.To != tt.to {
					t.Errorf("InvalidTransitionError{%q, %q}, want {%q, %q}",
						invalid.From, invalid.To, tt.from, tt.to)
				}
			default:
				_ = want
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Transition() error = %v, want %v", err, tt.wantErr)
				}
			}
		})
	}
}

func TestTransitionAccessDenied(t *testing.T) {
	swapStore := newFakeSwapStore()
	swapID := uuid.New()
	swapStore.swaps[swapID] = &models.SwapRequest{
		ID: swapID, SenderID: uuid.New(), ReceiverID: uuid.New(), Status: models.StatusPending,
	}
	w := newTestWorkflow(swapStore, &fakeBookStore{}, &fakeBus{})

	if _, err := w.Transition(context.Background(), swapID, models.StatusAccepted, uuid.New()); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("Transition() error = %v, want %v", err, ErrAccessDenied)
	}
}

func TestTransitionNotFound(t *testing.T) {
	w := newTestWorkflow(newFakeSwapStore(), &fakeBookStore{}, &fakeBus{})

	if _, err := w.Transition(context.Background(), uuid.New(), models.StatusAccepted, uuid.New()); !errors.Is(err, store.ErrSwapNotFound) {
		t.Fatalf("Transition() error = %v, want %v", err, store.ErrSwapNotFound)
	}
}

func TestTransitionLostRace(t *testing.T) {
	sender := uuid.New()
	receiver := uuid.New()
	swapID := uuid.New()

	swapStore := newFakeSwapStore()
	swapStore.swaps[swapID] = &models.SwapRequest{
		ID: swapID, SenderID: sender, ReceiverID: receiver, Status: models.StatusPending,
	}
	// конкурентный вызов отклоняет заявку между чтением и обновлением
	swapStore.beforeUpdate = func() {
		swapStore.swaps[swapID].Status = models.StatusRejected
	}
	bus := &fakeBus{}
	w := newTestWorkflow(swapStore, &fakeBookStore{}, bus)

	_, err := w.Transition(context.Background(), swapID, models.StatusAccepted, receiver)

	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("Transition() error = %v, want InvalidTransitionError", err)
	}
	// ошибка описывает актуальный статус, а не прочитанный до гонки
	if invalid.From != models.StatusRejected {
		t.Errorf("InvalidTransitionError.From = %q, want %q", invalid.From, models.StatusRejected)
	}
	if len(bus.events) != 0 {
		t.Error("проигравший гонку переход не должен публиковать события")
	}
}

func TestTransitionPublishesToBothParties(t *testing.T) {
	sender := uuid.New()
	receiver := uuid.New()
	swapID := uuid.New()

	swapStore := newFakeSwapStore()
	swapStore.swaps[swapID] = &models.SwapRequest{
		ID: swapID, SenderID: sender, ReceiverID: receiver, Status: models.StatusPending,
	}
	bus := &fakeBus{}
	w := newTestWorkflow(swapStore, &fakeBookStore{}, bus)

	if _, err := w.Transition(context.Background(), swapID, models.StatusAccepted, receiver); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	if len(bus.events) != 2 {
		t.Fatalf("опубликовано %d событий, ожидалось 2", len(bus.events))
	}
	got := map[uuid.UUID]bool{}
	for _, e := range bus.events {
		if e.Type != notify.EventStatusChange || e.SwapID != swapID {
			t.Errorf("неожиданное событие %+v", e)
		}
		got[e.UserID] = true
	}
	if !got[sender] || !got[receiver] {
		t.Error("события должны быть адресованы обеим сторонам заявки")
	}
}

func ptr[T any](v T) *T { return &v }
