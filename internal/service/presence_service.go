package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"Mercury/internal/model"
	"Mercury/internal/repo"
)

// PresenceService owns the domain side of connect/disconnect: identity
// lookup, online flags, delivery catch-up and presence broadcast. The hub
// owns the transport side (the userKey -> connection registry).
type PresenceService struct {
	users    repo.UserRepository
	messages repo.MessageRepository
	gateway  *Gateway
	logger   *zap.Logger
}

func NewPresenceService(users repo.UserRepository, messages repo.MessageRepository, gateway *Gateway, logger *zap.Logger) *PresenceService {
	return &PresenceService{
		users:    users,
		messages: messages,
		gateway:  gateway,
		logger:   logger,
	}
}

// Connect validates the handshake identity and brings the user online. A
// missing key or unknown user is fatal for the connection.
func (s *PresenceService) Connect(ctx context.Context, userKey string) (*model.User, error) {
	if userKey == "" {
		return nil, NewDomainError(CodeInvalidConnectionData, "user-key is required")
	}

	user, err := s.users.FindByUserKey(ctx, userKey)
	if err != nil {
		if errors.Is(err, repo.ErrUserMissing) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.users.SetOnlineStatus(ctx, userKey, true); err != nil {
		s.logger.Error("failed to set online status", zap.String("user_key", userKey), zap.Error(err))
	}

	s.catchUpDeliveries(ctx, userKey)

	s.gateway.PublishUserOnline(user.UserKey, user.UserName)
	s.logger.Info("user connected",
		zap.String("user_key", user.UserKey),
		zap.String("user_name", user.UserName),
	)
	return user, nil
}

// Disconnect flips the user offline and broadcasts it. Safe to call for a
// connection that never completed its handshake.
func (s *PresenceService) Disconnect(ctx context.Context, userKey, userName string) {
	if userKey == "" {
		return
	}

	if err := s.users.SetOnlineStatus(ctx, userKey, false); err != nil {
		s.logger.Error("failed to set offline status", zap.String("user_key", userKey), zap.Error(err))
	}

	s.gateway.PublishUserOffline(userKey, userName)
	s.logger.Info("user disconnected", zap.String("user_key", userKey))
}

// catchUpDeliveries marks everything addressed to the user that they have not
// seen yet as delivered and notifies each sender. The conditional append
// makes it idempotent: a message delivered concurrently by an explicit ack is
// simply skipped.
func (s *PresenceService) catchUpDeliveries(ctx context.Context, userKey string) {
	undelivered, err := s.messages.FindUndelivered(ctx, userKey)
	if err != nil {
		s.logger.Error("delivery catch-up scan failed", zap.String("user_key", userKey), zap.Error(err))
		return
	}

	delivered := 0
	for i := range undelivered {
		id := undelivered[i].ID.Hex()
		msg, appended, err := s.messages.AppendStatus(ctx, id, userKey, model.StatusDelivered)
		if err != nil {
			s.logger.Error("delivery catch-up append failed",
				zap.String("message_id", id), zap.Error(err))
			continue
		}
		if !appended {
			continue
		}
		delivered++
		s.gateway.PublishMessageStatusUpdate(id, userKey, model.StatusDelivered, msg.SenderKey)
	}

	if delivered > 0 {
		s.logger.Info("delivery catch-up complete",
			zap.String("user_key", userKey),
			zap.Int("delivered", delivered),
		)
	}
}
