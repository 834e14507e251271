package models

import "strings"

// ConversationType показывает, кем является пользователь в заявке
type ConversationType string

const (
	ConversationSent     ConversationType = "sent"
	ConversationReceived ConversationType = "received"
)

// SortKey определяет стратегию сортировки инбокса
type SortKey string

const (
	SortByLatestMessage SortKey = "latest_message"
	SortByDate          SortKey = "date"
	SortByBookTitle     SortKey = "book_title"
	SortBySenderName    SortKey = "sender_name"
	SortByStatus        SortKey = "status"
)

// ParseSortKey разбирает ключ сортировки; неизвестные значения
// откатываются к сортировке по последнему сообщению
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortByDate:
		return SortByDate
	case SortByBookTitle:
		return SortByBookTitle
	case SortBySenderName:
		return SortBySenderName
	case SortByStatus:
		return SortByStatus
	}
	return SortByLatestMessage
}

// InboxItem представляет одну строку единого инбокса пользователя
type InboxItem struct {
	Swap             *SwapRequest     `json:"swap"`
	ConversationType ConversationType `json:"conversation_type"`
	IsUnread         bool             `json:"is_unread"`
	UnreadMessages   int              `json:"unread_messages"`
	LastMessage      *MessagePreview  `json:"last_message,omitempty"`
}
