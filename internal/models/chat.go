package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage представляет сообщение в переписке по заявке на обмен
type ChatMessage struct {
	ID            uuid.UUID `json:"id"`
	SwapRequestID uuid.UUID `json:"swap_request_id"`
	SenderID      uuid.UUID `json:"sender_id"`
	Text          string    `json:"text,omitempty"`
	Images        []string  `json:"images,omitempty"`
	SentAt        time.Time `json:"sent_at"`
	// Прочитано ли сообщение второй стороной (не отправителем)
	ReadByReceiver bool `json:"read_by_receiver"`

	// Дополнительные поля для API
	Sender *User `json:"sender,omitempty"`
}

// IsImageOnly сообщает, состоит ли сообщение только из изображений
func (m *ChatMessage) IsImageOnly() bool {
	return m.Text == "" && len(m.Images) > 0
}

// MessagePreview содержит данные последнего сообщения для строки инбокса
type MessagePreview struct {
	Text        string    `json:"text,omitempty"`
	SenderID    uuid.UUID `json:"sender_id"`
	SentAt      time.Time `json:"sent_at"`
	IsImageOnly bool      `json:"is_image_only"`
}
