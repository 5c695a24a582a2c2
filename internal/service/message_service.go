package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"Mercury/internal/event"
	"Mercury/internal/model"
	"Mercury/internal/repo"
)

// MessageService is the delivery engine: it creates messages, fans them out
// to both participants, and advances per-recipient status idempotently.
type MessageService struct {
	messages repo.MessageRepository
	users    repo.UserRepository
	gateway  *Gateway
	logger   *zap.Logger
}

func NewMessageService(messages repo.MessageRepository, users repo.UserRepository, gateway *Gateway, logger *zap.Logger) *MessageService {
	return &MessageService{
		messages: messages,
		users:    users,
		gateway:  gateway,
		logger:   logger,
	}
}

// SendRequest carries a validated send_message payload plus the sender
// identity established at the handshake.
type SendRequest struct {
	SenderKey    string
	Sender       model.SenderInfo
	RecipientKey string
	Content      string
	MessageType  string
	ReplyTo      string
	Attachments  []model.Attachment
}

// SendMessage persists the message with its initial sent entry and emits the
// hydrated message to both connection groups. The sender echo is deliberate:
// it carries the server-assigned id and timestamp.
func (s *MessageService) SendMessage(ctx context.Context, req SendRequest) (*event.MessageView, error) {
	if req.RecipientKey == req.SenderKey {
		return nil, ErrCannotSendToSelf
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, NewDomainError(CodeValidationError, "Content must not be empty")
	}
	if !model.ValidMessageType(req.MessageType) {
		return nil, NewDomainError(CodeValidationError, "Unknown message type")
	}

	if _, err := s.users.FindByUserKey(ctx, req.RecipientKey); err != nil {
		if errors.Is(err, repo.ErrUserMissing) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}

	if req.ReplyTo != "" {
		if err := s.validateReply(ctx, req); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	msg := &model.Message{
		SenderKey:    req.SenderKey,
		RecipientKey: req.RecipientKey,
		Content:      req.Content,
		MessageType:  req.MessageType,
		ReplyTo:      req.ReplyTo,
		Attachments:  req.Attachments,
		Status: []model.StatusEntry{{
			UserKey:   req.SenderKey,
			Status:    model.StatusSent,
			Timestamp: now,
		}},
		CreatedAt: now,
	}

	id, err := s.messages.Insert(ctx, msg)
	if err != nil {
		return nil, err
	}

	view := event.MessageView{
		ID:           id,
		SenderKey:    msg.SenderKey,
		RecipientKey: msg.RecipientKey,
		Content:      msg.Content,
		MessageType:  msg.MessageType,
		ReplyTo:      msg.ReplyTo,
		Attachments:  msg.Attachments,
		Status:       msg.Status,
		CreatedAt:    msg.CreatedAt,
		Sender:       req.Sender,
	}

	// Dual delivery: sender gets an authoritative echo, recipient the message.
	s.gateway.PublishNewMessage(req.SenderKey, view)
	s.gateway.PublishNewMessage(req.RecipientKey, view)

	// Bookkeeping pass for the sender's sent entry. The initial entry already
	// reflects it, so the conditional append is a no-op unless creation raced.
	if _, _, err := s.messages.AppendStatus(ctx, id, req.SenderKey, model.StatusSent); err != nil {
		s.logger.Warn("sent bookkeeping failed", zap.String("message_id", id), zap.Error(err))
	}

	s.logger.Info("message sent",
		zap.String("message_id", id),
		zap.String("sender_key", req.SenderKey),
		zap.String("recipient_key", req.RecipientKey),
	)
	return &view, nil
}

// validateReply requires the referenced message to exist and to belong to the
// same sender/recipient pair in either direction.
func (s *MessageService) validateReply(ctx context.Context, req SendRequest) error {
	replyMsg, err := s.messages.FindByID(ctx, req.ReplyTo)
	if err != nil {
		if errors.Is(err, repo.ErrMessageMissing) || errors.Is(err, repo.ErrInvalidMessageID) {
			return ErrInvalidReply
		}
		return err
	}
	if !replyMsg.InvolvesPair(req.SenderKey, req.RecipientKey) {
		return ErrInvalidReply
	}
	return nil
}

// MarkDelivered records a delivery ack from the given user. Duplicate or
// regressive acks are no-op successes; the sender is only notified when the
// entry was actually appended.
func (s *MessageService) MarkDelivered(ctx context.Context, messageID, userKey string) error {
	return s.advanceStatus(ctx, messageID, userKey, model.StatusDelivered)
}

// MarkRead records a read ack from the given user.
func (s *MessageService) MarkRead(ctx context.Context, messageID, userKey string) error {
	return s.advanceStatus(ctx, messageID, userKey, model.StatusRead)
}

func (s *MessageService) advanceStatus(ctx context.Context, messageID, userKey, status string) error {
	msg, appended, err := s.messages.AppendStatus(ctx, messageID, userKey, status)
	if err != nil {
		if errors.Is(err, repo.ErrMessageMissing) || errors.Is(err, repo.ErrInvalidMessageID) {
			return ErrMessageNotFound
		}
		return err
	}

	if !appended {
		// Retry or out-of-order ack; the audit trail already covers it.
		s.logger.Debug("status ack ignored",
			zap.String("message_id", messageID),
			zap.String("user_key", userKey),
			zap.String("status", status),
		)
		return nil
	}

	s.gateway.PublishMessageStatusUpdate(messageID, userKey, status, msg.SenderKey)
	return nil
}
