package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"Mercury/internal/event"
	"Mercury/internal/model"
	"Mercury/internal/repo"
)

// ConversationService materializes conversations on demand by partitioning a
// user's messages by conversation partner. Grouping happens in process so the
// aggregation contract does not depend on the backing store's query language.
type ConversationService struct {
	messages repo.MessageRepository
	users    repo.UserRepository
	logger   *zap.Logger
}

func NewConversationService(messages repo.MessageRepository, users repo.UserRepository, logger *zap.Logger) *ConversationService {
	return &ConversationService{
		messages: messages,
		users:    users,
		logger:   logger,
	}
}

// ListConversations groups the user's messages by the other participant,
// computes last message / counts / unread per partner, orders partners by
// last-message recency and paginates the partner list.
func (s *ConversationService) ListConversations(ctx context.Context, userKey string, page, pageSize int64) (*event.ConversationListPayload, error) {
	msgs, err := s.messages.FindByParticipant(ctx, userKey)
	if err != nil {
		return nil, err
	}

	byPartner := make(map[string]*model.Conversation)
	for i := range msgs {
		msg := &msgs[i]
		partner := msg.RecipientKey
		if partner == userKey {
			partner = msg.SenderKey
		}
		if partner == "" {
			continue // legacy broadcast message, no partner
		}

		conv, ok := byPartner[partner]
		if !ok {
			conv = &model.Conversation{PartnerKey: partner}
			byPartner[partner] = conv
		}

		conv.MessageCount++
		if msg.RecipientKey == userKey && !msg.ReadBy(userKey) {
			conv.UnreadCount++
		}
		if conv.LastMessage == nil || msg.CreatedAt.After(conv.LastMessage.CreatedAt) {
			conv.LastMessage = msg
		}
	}

	conversations := make([]model.Conversation, 0, len(byPartner))
	for _, conv := range byPartner {
		conversations = append(conversations, *conv)
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessage.CreatedAt.After(conversations[j].LastMessage.CreatedAt)
	})

	total := int64(len(conversations))
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	payload := &event.ConversationListPayload{Conversations: conversations[start:end]}
	payload.Pagination.CurrentPage = page
	payload.Pagination.Limit = pageSize
	payload.Pagination.TotalConversations = total

	s.logger.Debug("conversation list built",
		zap.String("user_key", userKey),
		zap.Int64("partners", total),
		zap.Int("page_items", len(payload.Conversations)),
	)
	return payload, nil
}

// GetConversation returns the messages between the user and one partner,
// newest first, hydrated with sender display info in the same shape as the
// send_message echo.
func (s *ConversationService) GetConversation(ctx context.Context, userKey string, self model.SenderInfo, partnerKey string, page, pageSize int64) (*event.ConversationPayload, error) {
	partner, err := s.users.FindByUserKey(ctx, partnerKey)
	if err != nil {
		if errors.Is(err, repo.ErrUserMissing) {
			return nil, ErrPartnerNotFound
		}
		return nil, err
	}

	result, err := s.messages.FindBetweenPaginated(ctx, userKey, partnerKey, page, pageSize)
	if err != nil {
		return nil, err
	}

	partnerInfo := partner.Sender()
	views := make([]event.MessageView, 0, len(result.Data))
	for i := range result.Data {
		msg := &result.Data[i]
		sender := partnerInfo
		if msg.SenderKey == userKey {
			sender = self
		}
		views = append(views, event.MessageView{
			ID:           msg.ID.Hex(),
			SenderKey:    msg.SenderKey,
			RecipientKey: msg.RecipientKey,
			Content:      msg.Content,
			MessageType:  msg.MessageType,
			ReplyTo:      msg.ReplyTo,
			Attachments:  msg.Attachments,
			Status:       msg.Status,
			CreatedAt:    msg.CreatedAt,
			Sender:       sender,
		})
	}

	payload := &event.ConversationPayload{Messages: views}
	payload.Pagination.CurrentPage = page
	payload.Pagination.Limit = pageSize
	payload.Pagination.TotalMessages = result.Total
	return payload, nil
}
