package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message types
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeFile  = "file"
	TypeVideo = "video"
)

// Message status values. Per user they only move forward:
// sent < delivered < read.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Content and attachment limits
const (
	ContentMaxLength = 1000
	MaxAttachments   = 5
)

var statusRank = map[string]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// StatusRank returns the monotonic rank of a status, 0 for unknown.
func StatusRank(status string) int {
	return statusRank[status]
}

// ValidMessageType reports whether t is one of the supported message types.
func ValidMessageType(t string) bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeVideo:
		return true
	}
	return false
}

// StatusEntry is one user's observed stage for a message. The entries on a
// message form an append-only audit trail; a user never gets two entries with
// the same status.
type StatusEntry struct {
	UserKey   string    `json:"userKey" bson:"user_key"`
	Status    string    `json:"status" bson:"status"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Attachment describes one file attached to a message.
type Attachment struct {
	URL      string  `json:"url" bson:"url"`
	Type     string  `json:"type" bson:"type"`
	Name     string  `json:"name" bson:"name"`
	Size     int64   `json:"size" bson:"size"`
	Duration float64 `json:"duration,omitempty" bson:"duration,omitempty"`
}

// Message represents a chat message document in MongoDB. RecipientKey is
// empty only in legacy broadcast mode; direct messaging always sets it.
// Messages are soft-deleted so conversation history stays intact.
type Message struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SenderKey    string             `json:"senderKey" bson:"sender_key"`
	RecipientKey string             `json:"recipientKey" bson:"recipient_key"`
	Content      string             `json:"content" bson:"content"`
	MessageType  string             `json:"messageType" bson:"message_type"`
	ReplyTo      string             `json:"replyTo,omitempty" bson:"reply_to,omitempty"`
	Attachments  []Attachment       `json:"attachments,omitempty" bson:"attachments,omitempty"`
	Status       []StatusEntry      `json:"messageStatus" bson:"message_status"`
	IsEdited     bool               `json:"isEdited" bson:"is_edited"`
	EditedAt     *time.Time         `json:"editedAt" bson:"edited_at"`
	CreatedAt    time.Time          `json:"createdAt" bson:"created_at"`
	DeletedAt    *time.Time         `json:"-" bson:"deleted_at"`
}

// StatusFor returns the highest-ranked status entry for the given user, or
// nil if the user has none.
func (m *Message) StatusFor(userKey string) *StatusEntry {
	var best *StatusEntry
	for i := range m.Status {
		e := &m.Status[i]
		if e.UserKey != userKey {
			continue
		}
		if best == nil || StatusRank(e.Status) > StatusRank(best.Status) {
			best = e
		}
	}
	return best
}

// ReadBy reports whether the given user has a read entry on the message.
func (m *Message) ReadBy(userKey string) bool {
	s := m.StatusFor(userKey)
	return s != nil && s.Status == StatusRead
}

// InvolvesPair reports whether the message was exchanged between exactly the
// two given users, in either direction.
func (m *Message) InvolvesPair(a, b string) bool {
	return (m.SenderKey == a && m.RecipientKey == b) ||
		(m.SenderKey == b && m.RecipientKey == a)
}
