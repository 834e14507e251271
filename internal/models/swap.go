package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SwapStatus представляет статус заявки на обмен
type SwapStatus string

const (
	StatusPending  SwapStatus = "pending"
	StatusAccepted SwapStatus = "accepted"
	StatusReserved SwapStatus = "reserved"
	StatusRejected SwapStatus = "rejected"
	StatusExpired  SwapStatus = "expired"
)

// ParseSwapStatus разбирает строку статуса без учета регистра
func ParseSwapStatus(s string) (SwapStatus, error) {
	switch SwapStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusAccepted:
		return StatusAccepted, nil
	case StatusReserved:
		return StatusReserved, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusExpired:
		return StatusExpired, nil
	}
	return "", fmt.Errorf("неизвестный статус заявки: %q", s)
}

// IsTerminal сообщает, является ли статус конечным
func (s SwapStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusExpired
}

// SwapType представляет тип обмена
type SwapType string

const (
	SwapTypeByBooks       SwapType = "by_books"
	SwapTypeGiveAway      SwapType = "give_away"
	SwapTypeOpenForOffers SwapType = "open_for_offers"
)

// ParseSwapType разбирает строку типа обмена
func ParseSwapType(s string) (SwapType, error) {
	switch SwapType(strings.ToLower(strings.TrimSpace(s))) {
	case SwapTypeByBooks:
		return SwapTypeByBooks, nil
	case SwapTypeGiveAway:
		return SwapTypeGiveAway, nil
	case SwapTypeOpenForOffers:
		return SwapTypeOpenForOffers, nil
	}
	return "", fmt.Errorf("неизвестный тип обмена: %q", s)
}

// SwapRequest представляет заявку на обмен книгами
type SwapRequest struct {
	ID              uuid.UUID  `json:"id"`
	SenderID        uuid.UUID  `json:"sender_id"`
	ReceiverID      uuid.UUID  `json:"receiver_id"`
	RequestedBookID uuid.UUID  `json:"requested_book_id"`
	SwapType        SwapType   `json:"swap_type"`
	OfferedBookID   *uuid.UUID `json:"offered_book_id,omitempty"`
	OfferedGenreID  *uuid.UUID `json:"offered_genre_id,omitempty"`
	AskForGiveaway  bool       `json:"ask_for_giveaway"`
	Status          SwapStatus `json:"status"`
	Note            string     `json:"note,omitempty"`
	RequestedAt     time.Time  `json:"requested_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Отметки прочтения: NULL означает "есть непрочитанные изменения"
	ReadBySenderAt   *time.Time `json:"read_by_sender_at,omitempty"`
	ReadByReceiverAt *time.Time `json:"read_by_receiver_at,omitempty"`

	// Дополнительные поля для API
	RequestedBook *Book `json:"requested_book,omitempty"`
	OfferedBook   *Book `json:"offered_book,omitempty"`
	Sender        *User `json:"sender,omitempty"`
	Receiver      *User `json:"receiver,omitempty"`
}

// IsParty сообщает, является ли пользователь стороной заявки
func (r *SwapRequest) IsParty(userID uuid.UUID) bool {
	return r.SenderID == userID || r.ReceiverID == userID
}

// OtherParty возвращает вторую сторону заявки относительно userID
func (r *SwapRequest) OtherParty(userID uuid.UUID) uuid.UUID {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

// ReadAt возвращает отметку прочтения для роли пользователя в заявке
func (r *SwapRequest) ReadAt(userID uuid.UUID) *time.Time {
	if r.ReceiverID == userID {
		return r.ReadByReceiverAt
	}
	return r.ReadBySenderAt
}
