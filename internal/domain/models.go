package domain

import "time"

// Presence statuses mirrored into the durable user record.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Message delivery states, derived from the receipt timestamps.
const (
	MessageSent     = "sent"
	MessageReceived = "received"
	MessageRead     = "read"
)

// Contact relationship states.
const (
	ContactPending  = "pending"
	ContactAccepted = "accepted"
	ContactBlocked  = "blocked"
)

// Notification types.
const (
	NotificationMessage         = "message"
	NotificationContactRequest  = "contact_request"
	NotificationContactAccepted = "contact_accepted"
)

// DeletedContent is the tombstone shown in place of a deleted message's
// content for all readers. Kept identical to the legacy wire format.
const DeletedContent = "[Message supprimé]"

// User represents an application user. Status, SessionID and LastConnection
// form the durable presence mirror updated on every connect/disconnect.
type User struct {
	ID             string     `bson:"_id" json:"id"`
	Email          string     `bson:"email" json:"email"`
	Username       string     `bson:"username" json:"username"`
	HashedPassword string     `bson:"hashed_password" json:"-"`
	Avatar         *string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Status         string     `bson:"status" json:"status"`
	LastConnection *time.Time `bson:"last_connection,omitempty" json:"lastConnection,omitempty"`
	SessionID      string     `bson:"session_id,omitempty" json:"-"`
	CreatedAt      time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updatedAt"`
}

// Message is a persisted direct message between two users.
// Content is encrypted at rest except for the deletion tombstone.
type Message struct {
	ID          string     `bson:"_id"`
	SenderID    string     `bson:"sender_id"`
	RecipientID string     `bson:"recipient_id"`
	Content     string     `bson:"content"`
	Attachments []string   `bson:"attachments,omitempty"`
	ReceivedAt  *time.Time `bson:"received_at,omitempty"`
	ReadAt      *time.Time `bson:"read_at,omitempty"`
	Edited      bool       `bson:"edited"`
	Deleted     bool       `bson:"deleted"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

// Status derives the delivery state: read > received > sent.
func (m *Message) Status() string {
	switch {
	case m.ReadAt != nil:
		return MessageRead
	case m.ReceivedAt != nil:
		return MessageReceived
	default:
		return MessageSent
	}
}

// MarkReceived stamps ReceivedAt once. Later acknowledgements are no-ops and
// never touch ReadAt. Reports whether the message was mutated.
func (m *Message) MarkReceived(at time.Time) bool {
	if m.ReceivedAt != nil {
		return false
	}
	m.ReceivedAt = &at
	return true
}

// MarkRead stamps ReadAt and backfills ReceivedAt, so that a read message is
// always also received regardless of acknowledgement arrival order.
func (m *Message) MarkRead(at time.Time) {
	if m.ReceivedAt == nil {
		m.ReceivedAt = &at
	}
	m.ReadAt = &at
}

// Contact is one direction of a contact relationship. Relationships are
// stored as reciprocal row pairs; blocking is one-directional.
type Contact struct {
	ID          string    `bson:"_id" json:"id"`
	UserID      string    `bson:"user_id" json:"userId"`
	ContactID   string    `bson:"contact_id" json:"contactId"`
	Status      string    `bson:"status" json:"status"`
	InitiatedBy string    `bson:"initiated_by" json:"initiatedBy"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

// Notification is a persisted event addressed to one user.
type Notification struct {
	ID         string    `bson:"_id" json:"id"`
	UserID     string    `bson:"user_id" json:"userId"`
	Type       string    `bson:"type" json:"type"`
	RelatedID  string    `bson:"related_id" json:"relatedId"`
	FromUserID string    `bson:"from_user_id" json:"fromUser"`
	Content    string    `bson:"content,omitempty" json:"content,omitempty"`
	Read       bool      `bson:"read" json:"read"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// ConversationSummary is one row of a user's conversation list: the peer,
// the last exchanged message and the count of unread incoming messages.
type ConversationSummary struct {
	Peer        *User
	LastMessage *Message
	UnreadCount int
}
