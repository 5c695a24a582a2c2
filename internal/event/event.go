package event

import (
	"encoding/json"
	"time"

	"Mercury/internal/model"
)

// Client -> server events
const (
	EventSendMessage       = "send_message"
	EventGetMessageHistory = "get_message_history"
	EventGetConversation   = "get_conversation"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventMessageDelivered  = "message_delivered"
	EventMessageRead       = "message_read"
	EventUploadFileChunk   = "upload_file_chunk"
)

// Server -> client events
const (
	EventNewMessage          = "new_message"
	EventMessageHistory      = "message_history"
	EventConversation        = "conversation"
	EventMessageStatusUpdate = "message_status_update"
	EventUserTyping          = "user_typing"
	EventUserOnline          = "user_online"
	EventUserOffline         = "user_offline"
	EventUploadProgress      = "upload_progress"
	EventUploadComplete      = "upload_complete"
	EventError               = "error"
)

// WsEvent is the wire envelope for every socket frame, inbound and outbound.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound builds an envelope around an already-typed payload.
func Outbound(name string, payload any) WsEvent {
	raw, _ := json.Marshal(payload)
	return WsEvent{Event: name, Payload: raw}
}

// MessageView is a message hydrated with sender display info. sendMessage and
// get_conversation share this shape so the client renders both the same way.
type MessageView struct {
	ID           string              `json:"id"`
	SenderKey    string              `json:"senderKey"`
	RecipientKey string              `json:"recipientKey"`
	Content      string              `json:"content"`
	MessageType  string              `json:"messageType"`
	ReplyTo      string              `json:"replyTo,omitempty"`
	Attachments  []model.Attachment  `json:"attachments,omitempty"`
	Status       []model.StatusEntry `json:"messageStatus"`
	CreatedAt    time.Time           `json:"createdAt"`
	Sender       model.SenderInfo    `json:"sender"`
}

// NewMessagePayload is emitted to both participants after a successful send.
type NewMessagePayload struct {
	Message   MessageView `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConversationListPayload answers get_message_history.
type ConversationListPayload struct {
	Conversations []model.Conversation `json:"conversations"`
	Pagination    struct {
		CurrentPage        int64 `json:"currentPage"`
		Limit              int64 `json:"limit"`
		TotalConversations int64 `json:"totalConversations"`
	} `json:"pagination"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationPayload answers get_conversation.
type ConversationPayload struct {
	Messages   []MessageView `json:"messages"`
	Pagination struct {
		CurrentPage   int64 `json:"currentPage"`
		Limit         int64 `json:"limit"`
		TotalMessages int64 `json:"totalMessages"`
	} `json:"pagination"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusUpdatePayload tells a sender that one recipient advanced a message.
type StatusUpdatePayload struct {
	MessageID string    `json:"messageId"`
	UserKey   string    `json:"userKey"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingPayload relays a typing indicator to the recipient.
type TypingPayload struct {
	UserKey      string    `json:"userKey"`
	UserName     string    `json:"userName"`
	RecipientKey string    `json:"recipientKey"`
	IsTyping     bool      `json:"isTyping"`
	Timestamp    time.Time `json:"timestamp"`
}

// PresencePayload announces a user going online or offline.
type PresencePayload struct {
	UserKey   string    `json:"userKey"`
	UserName  string    `json:"userName"`
	IsOnline  bool      `json:"isOnline"`
	Timestamp time.Time `json:"timestamp"`
}

// UploadProgressPayload is emitted to the uploader after every chunk.
type UploadProgressPayload struct {
	FileID       string    `json:"fileId"`
	Progress     float64   `json:"progress"`
	RecipientKey string    `json:"recipientKey"`
	Timestamp    time.Time `json:"timestamp"`
}

// UploadCompletePayload is emitted exactly once, after a successful merge.
type UploadCompletePayload struct {
	FileID       string    `json:"fileId"`
	URL          string    `json:"url"`
	FileName     string    `json:"fileName"`
	FileType     string    `json:"fileType"`
	FileSize     int64     `json:"fileSize"`
	RecipientKey string    `json:"recipientKey"`
	Timestamp    time.Time `json:"timestamp"`
}

// ErrorEventPayload is the structured error frame.
type ErrorEventPayload struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
