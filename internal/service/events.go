package service

import "time"

// Client-to-server events.
const (
	EventSendMessage     = "send-message"
	EventMessageReceived = "message-received"
	EventMessageRead     = "message-read"
	EventEditMessage     = "edit-message"
	EventDeleteMessage   = "delete-message"
	EventTyping          = "typing"
	EventGetUserStatus   = "get-user-status"
)

// Server-to-client events.
const (
	EventNewMessage                  = "new-message"
	EventMessageSent                 = "message-sent"
	EventMessageReceivedConfirmation = "message-received-confirmation"
	EventMessageReadConfirmation     = "message-read-confirmation"
	EventMessageEdited               = "message-edited"
	EventMessageUpdated              = "message-updated"
	EventMessageDeleted              = "message-deleted"
	EventUserTyping                  = "user-typing"
	EventUserStatus                  = "user-status"
	EventUserStatusResponse          = "user-status-response"
	EventError                       = "error"
)

// SendPayload is the client request to send a message.
type SendPayload struct {
	RecipientID   string   `json:"recipient_id"`
	Content       string   `json:"content"`
	AttachmentIDs []string `json:"attachment_ids,omitempty"`
}

// AckPayload acknowledges receipt or reading of a single message.
type AckPayload struct {
	MessageID string `json:"message_id"`
}

// EditPayload is the client request to edit a sent message.
type EditPayload struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

// TypingPayload is the client typing indicator.
type TypingPayload struct {
	RecipientID string `json:"recipient_id"`
	IsTyping    bool   `json:"isTyping"`
}

// StatusQueryPayload asks for another user's presence.
type StatusQueryPayload struct {
	UserID string `json:"user_id"`
}

// MessageView is the wire representation of a message. Content is plaintext
// here; deleted messages carry the tombstone instead.
type MessageView struct {
	ID          string     `json:"id"`
	Sender      string     `json:"sender"`
	Recipient   string     `json:"recipient"`
	Content     string     `json:"content"`
	Attachments []string   `json:"attachments,omitempty"`
	Status      string     `json:"status"`
	Edited      bool       `json:"edited"`
	Deleted     bool       `json:"deleted"`
	ReceivedAt  *time.Time `json:"receivedAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// MessageEnvelope wraps a message view for message-updated. new-message
// carries the bare view.
type MessageEnvelope struct {
	Message *MessageView `json:"message"`
}

// ConfirmPayload is the sender-side confirmation for send and edit.
type ConfirmPayload struct {
	Success bool         `json:"success"`
	Message *MessageView `json:"message,omitempty"`
}

// ReceivedReceipt notifies the sender that a message reached its recipient.
type ReceivedReceipt struct {
	MessageID  string    `json:"message_id"`
	ReceivedBy string    `json:"received_by"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// ReadReceipt notifies the sender that a message was read.
type ReadReceipt struct {
	MessageID string    `json:"message_id"`
	ReadBy    string    `json:"read_by"`
	ReadAt    time.Time `json:"readAt"`
}

// DeletedNotice tells the recipient that a message was deleted.
type DeletedNotice struct {
	MessageID string `json:"message_id"`
}

// TypingEvent relays a typing indicator to the recipient.
type TypingEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// StatusEvent broadcasts a presence transition.
type StatusEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

// ErrorPayload carries a human-readable error to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}
