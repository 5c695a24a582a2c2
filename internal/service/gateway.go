package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"Mercury/internal/event"
)

// Sender is the transport boundary: it addresses outbound events to a single
// user's connection group or to every connected client. The hub implements it.
type Sender interface {
	ToUser(userKey string, ev event.WsEvent)
	Broadcast(ev event.WsEvent)
}

// Gateway translates internal state changes into addressed outbound events.
// It is constructed once with its Sender; services never reach into the
// transport directly.
type Gateway struct {
	sender Sender
	logger *zap.Logger
}

func NewGateway(sender Sender, logger *zap.Logger) *Gateway {
	return &Gateway{sender: sender, logger: logger}
}

func (g *Gateway) PublishNewMessage(targetUserKey string, message event.MessageView) {
	g.sender.ToUser(targetUserKey, event.Outbound(event.EventNewMessage, event.NewMessagePayload{
		Message:   message,
		Timestamp: time.Now(),
	}))
	g.logger.Debug("published new message",
		zap.String("target", targetUserKey),
		zap.String("message_id", message.ID))
}

func (g *Gateway) PublishMessageStatusUpdate(messageID, userKey, status, senderKey string) {
	g.sender.ToUser(senderKey, event.Outbound(event.EventMessageStatusUpdate, event.StatusUpdatePayload{
		MessageID: messageID,
		UserKey:   userKey,
		Status:    status,
		Timestamp: time.Now(),
	}))
	g.logger.Debug("published status update",
		zap.String("message_id", messageID),
		zap.String("user_key", userKey),
		zap.String("status", status))
}

func (g *Gateway) PublishConversationList(userKey string, payload event.ConversationListPayload) {
	payload.Timestamp = time.Now()
	g.sender.ToUser(userKey, event.Outbound(event.EventMessageHistory, payload))
}

func (g *Gateway) PublishConversation(userKey string, payload event.ConversationPayload) {
	payload.Timestamp = time.Now()
	g.sender.ToUser(userKey, event.Outbound(event.EventConversation, payload))
}

func (g *Gateway) PublishTyping(userKey, userName, recipientKey string, isTyping bool) {
	g.sender.ToUser(recipientKey, event.Outbound(event.EventUserTyping, event.TypingPayload{
		UserKey:      userKey,
		UserName:     userName,
		RecipientKey: recipientKey,
		IsTyping:     isTyping,
		Timestamp:    time.Now(),
	}))
}

func (g *Gateway) PublishUserOnline(userKey, userName string) {
	g.sender.Broadcast(event.Outbound(event.EventUserOnline, event.PresencePayload{
		UserKey:   userKey,
		UserName:  userName,
		IsOnline:  true,
		Timestamp: time.Now(),
	}))
}

func (g *Gateway) PublishUserOffline(userKey, userName string) {
	g.sender.Broadcast(event.Outbound(event.EventUserOffline, event.PresencePayload{
		UserKey:   userKey,
		UserName:  userName,
		IsOnline:  false,
		Timestamp: time.Now(),
	}))
}

func (g *Gateway) PublishUploadProgress(userKey, fileID string, progress float64, recipientKey string) {
	g.sender.ToUser(userKey, event.Outbound(event.EventUploadProgress, event.UploadProgressPayload{
		FileID:       fileID,
		Progress:     progress,
		RecipientKey: recipientKey,
		Timestamp:    time.Now(),
	}))
}

func (g *Gateway) PublishUploadComplete(userKey string, payload event.UploadCompletePayload) {
	payload.Timestamp = time.Now()
	g.sender.ToUser(userKey, event.Outbound(event.EventUploadComplete, payload))
	g.logger.Info("published upload complete",
		zap.String("file_id", payload.FileID),
		zap.String("user_key", userKey))
}

// PublishError converts any error into a structured error frame. Domain
// errors keep their code; everything else is masked.
func (g *Gateway) PublishError(userKey string, err error) {
	payload := event.ErrorEventPayload{
		Code:      CodeSomethingWentWrong,
		Message:   "Something went wrong",
		Timestamp: time.Now(),
	}

	var de *DomainError
	if errors.As(err, &de) {
		payload.Code = de.Code
		payload.Message = de.Message
		payload.Details = de.Details
	} else {
		g.logger.Error("internal error surfaced to client",
			zap.String("user_key", userKey), zap.Error(err))
	}

	g.sender.ToUser(userKey, event.Outbound(event.EventError, payload))
}
