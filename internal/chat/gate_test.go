package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/swapshelf/swapshelf-api/internal/cache"
	"github.com/swapshelf/swapshelf-api/internal/models"
	"github.com/swapshelf/swapshelf-api/internal/notify"
	"github.com/swapshelf/swapshelf-api/internal/store"
	"github.com/swapshelf/swapshelf-api/internal/swaps"
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
	swaps   map[uuid.UUID]*models.SwapRequest
	cleared []uuid.UUID
}

func (s *fakeSwapStore) Create(_ context.Context, swap *models.SwapRequest) error {
	s.swaps[swap.ID] = swap
	return nil
}

func (s *fakeSwapStore) GetByID(_ context.Context, id uuid.UUID) (*models.SwapRequest, error) {
	swap, ok := s.swaps[id]
	if !ok {
		return nil, store.ErrSwapNotFound
	}
	return swap, nil
}

func (s *fakeSwapStore) ListSent(_ context.Context, _ uuid.UUID, _ *models.SwapStatus) ([]*models.SwapRequest, error) {
	return nil, nil
}

func (s *fakeSwapStore) ListReceived(_ context.Context, _ uuid.UUID, _ *models.SwapStatus) ([]*models.SwapRequest, error) {
	return nil, nil
}

func (s *fakeSwapStore) ExistsByParties(_ context.Context, _, _, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (s *fakeSwapStore) UpdateStatusIf(_ context.Context, _ uuid.UUID, _, _ models.SwapStatus, _ time.Time) (bool, error) {
	return true, nil
}

func (s *fakeSwapStore) ClearReadFor(_ context.Context, id uuid.UUID, party uuid.UUID) error {
	s.cleared = append(s.cleared, party)
	if swap, ok := s.swaps[id]; ok {
		if swap.SenderID == party {
			swap.ReadBySenderAt = nil
		}
		if swap.ReceiverID == party {
			swap.ReadByReceiverAt = nil
		}
	}
	return nil
}

func (s *fakeSwapStore) MarkReadFor(_ context.Context, _ uuid.UUID, _ uuid.UUID, _ time.Time) error {
	return nil
}

type fakeMessageStore struct {
	messages    []*models.ChatMessage
	unread      map[uuid.UUID]int
	countCalls  int
	markedBy    []uuid.UUID
	markedSwaps []uuid.UUID
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{unread: make(map[uuid.UUID]int)}
}

func (s *fakeMessageStore) Create(_ context.Context, msg *models.ChatMessage) error {
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeMessageStore) ListBySwap(_ context.Context, swapID uuid.UUID, _ int, _ *uuid.UUID) ([]*models.ChatMessage, error) {
	var out []*models.ChatMessage
	for _, msg := range s.messages {
		if msg.SwapRequestID == swapID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) Latest(_ context.Context, swapID uuid.UUID) (*models.ChatMessage, error) {
	var latest *models.ChatMessage
	for _, msg := range s.messages {
		if msg.SwapRequestID == swapID && (latest == nil || msg.SentAt.After(latest.SentAt)) {
			latest = msg
		}
	}
	return latest, nil
}

func (s *fakeMessageStore) CountUnread(_ context.Context, _ uuid.UUID, excludeSenderID uuid.UUID) (int, error) {
	s.countCalls++
	return s.unread[excludeSenderID], nil
}

func (s *fakeMessageStore) MarkRead(_ context.Context, swapID uuid.UUID, readerID uuid.UUID) error {
	s.markedBy = append(s.markedBy, readerID)
	s.markedSwaps = append(s.markedSwaps, swapID)
	s.unread[readerID] = 0
	return nil
}

type fakeCache struct {
	values  map[string]string
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) (int64, error) {
	var n int64
	for _, key := range keys {
		c.deleted = append(c.deleted, key)
		if _, ok := c.values[key]; ok {
			delete(c.values, key)
			n++
		}
	}
	return n, nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }
func (c *fakeCache) Close() error               { return nil }

type gateFixture struct {
	gate     *Gate
	swaps    *fakeSwapStore
	messages *fakeMessageStore
	cache    *fakeCache
	bus      *fakeBus
	swapID   uuid.UUID
	sender   uuid.UUID
	receiver uuid.UUID
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	f := &gateFixture{
		swaps:    &fakeSwapStore{swaps: make(map[uuid.UUID]*models.SwapRequest)},
		messages: newFakeMessageStore(),
		cache:    newFakeCache(),
		bus:      &fakeBus{},
		swapID:   uuid.New(),
		sender:   uuid.New(),
		receiver: uuid.New(),
	}
	f.swaps.swaps[f.swapID] = &models.SwapRequest{
		ID:       f.swapID,
		SenderID: f.sender, ReceiverID: f.receiver,
		Status: models.StatusPending,
	}
	f.gate = NewGate(f.swaps, f.messages, f.cache, f.bus, 5*time.Minute)
	return f
}

func TestSendMessage(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	msg, err := f.gate.SendMessage(ctx, f.swapID, f.sender, "привет", nil)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg.SenderID != f.sender || msg.SwapRequestID != f.swapID {
		t.Errorf("сообщение привязано к %s/%s, want %s/%s",
			msg.SenderID, msg.SwapRequestID, f.sender, f.swapID)
	}
	if len(f.messages.messages) != 1 {
		t.Fatalf("в хранилище %d сообщений, ожидалось 1", len(f.messages.messages))
	}

	// у второй стороны сбрасывается отметка прочтения и кеш счетчика
	if len(f.swaps.cleared) != 1 || f.swaps.cleared[0] != f.receiver {
		t.Errorf("отметка прочтения сброшена у %v, want [%s]", f.swaps.cleared, f.receiver)
	}
	wantKey := unreadKey(f.receiver, f.swapID)
	if len(f.cache.deleted) != 1 || f.cache.deleted[0] != wantKey {
		t.Errorf("сброшен кеш %v, want [%s]", f.cache.deleted, wantKey)
	}

	// дельта уходит только второй стороне
	if len(f.bus.events) != 1 {
		t.Fatalf("опубликовано %d событий, ожидалось 1", len(f.bus.events))
	}
	if e := f.bus.events[0]; e.UserID != f.receiver || e.Type != notify.EventNewMessage {
		t.Errorf("событие %+v, want new_message для %s", e, f.receiver)
	}
}

func TestSendMessageValidation(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	if _, err := f.gate.SendMessage(ctx, f.swapID, uuid.New(), "привет", nil); !errors.Is(err, swaps.ErrAccessDenied) {
		t.Errorf("чужой пользователь: error = %v, want %v", err, swaps.ErrAccessDenied)
	}
	if _, err := f.gate.SendMessage(ctx, f.swapID, f.sender, "", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("пустое сообщение: error = %v, want %v", err, ErrEmptyMessage)
	}
	if _, err := f.gate.SendMessage(ctx, uuid.New(), f.sender, "привет", nil); !errors.Is(err, store.ErrSwapNotFound) {
		t.Errorf("несуществующая заявка: error = %v, want %v", err, store.ErrSwapNotFound)
	}

	// сообщение только из изображений допустимо
	msg, err := f.gate.SendMessage(ctx, f.swapID, f.sender, "", []string{"https://res.cloudinary.com/demo/book.jpg"})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if !msg.IsImageOnly() {
		t.Error("сообщение без текста с изображениями должно быть image-only")
	}
}

func TestUnreadCountCaching(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	f.messages.unread[f.receiver] = 3

	// промах кеша: пересчет из хранилища и запись в кеш
	count, err := f.gate.UnreadCount(ctx, f.swapID, f.receiver)
	if err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if f.messages.countCalls != 1 {
		t.Errorf("countCalls = %d, want 1", f.messages.countCalls)
	}

	// попадание: хранилище не трогаем даже при изменившихся данных
	f.messages.unread[f.receiver] = 7
	count, err = f.gate.UnreadCount(ctx, f.swapID, f.receiver)
	if err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}
	if count != 3 {
		t.Errorf("закешированный count = %d, want 3", count)
	}
	if f.messages.countCalls != 1 {
		t.Errorf("countCalls = %d, want 1", f.messages.countCalls)
	}
}

func TestUnreadCountEvictedAfterSend(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	if _, err := f.gate.UnreadCount(ctx, f.swapID, f.receiver); err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}

	// новое сообщение инвалидирует кеш получателя
	f.messages.unread[f.receiver] = 1
	if _, err := f.gate.SendMessage(ctx, f.swapID, f.sender, "новое", nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	count, err := f.gate.UnreadCount(ctx, f.swapID, f.receiver)
	if err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count после отправки = %d, want 1", count)
	}
}

func TestUnreadCountAccess(t *testing.T) {
	f := newGateFixture(t)

	if _, err := f.gate.UnreadCount(context.Background(), f.swapID, uuid.New()); !errors.Is(err, swaps.ErrAccessDenied) {
		t.Fatalf("UnreadCount() error = %v, want %v", err, swaps.ErrAccessDenied)
	}
}

func TestMarkMessagesRead(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	f.messages.unread[f.receiver] = 2

	if _, err := f.gate.UnreadCount(ctx, f.swapID, f.receiver); err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}

	if err := f.gate.MarkMessagesRead(ctx, f.swapID, f.receiver); err != nil {
		t.Fatalf("MarkMessagesRead() error = %v", err)
	}
	if len(f.messages.markedBy) != 1 || f.messages.markedBy[0] != f.receiver {
		t.Errorf("прочтение отмечено для %v, want [%s]", f.messages.markedBy, f.receiver)
	}

	// после прочтения счетчик пересчитывается и равен нулю
	count, err := f.gate.UnreadCount(ctx, f.swapID, f.receiver)
	if err != nil {
		t.Fatalf("UnreadCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("count после прочтения = %d, want 0", count)
	}

	if err := f.gate.MarkMessagesRead(ctx, f.swapID, uuid.New()); !errors.Is(err, swaps.ErrAccessDenied) {
		t.Errorf("чужой пользователь: error = %v, want %v", err, swaps.ErrAccessDenied)
	}
}

func TestMessagesMarksRead(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	if _, err := f.gate.SendMessage(ctx, f.swapID, f.sender, "привет", nil); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	list, err := f.gate.Messages(ctx, f.swapID, f.receiver, 50, nil)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("получено %d сообщений, ожидалось 1", len(list))
	}

	// чтение ленты помечает сообщения прочитанными
	if len(f.messages.markedBy) != 1 || f.messages.markedBy[0] != f.receiver {
		t.Errorf("прочтение отмечено для %v, want [%s]", f.messages.markedBy, f.receiver)
	}

	if _, err := f.gate.Messages(ctx, f.swapID, uuid.New(), 50, nil); !errors.Is(err, swaps.ErrAccessDenied) {
		t.Errorf("чужой пользователь: error = %v, want %v", err, swaps.ErrAccessDenied)
	}
}
