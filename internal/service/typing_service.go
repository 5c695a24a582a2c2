package service

import "go.uber.org/zap"

// TypingService relays typing indicators to the recipient's connection group
// only. Nothing is persisted and delivery is best-effort: if the recipient is
// offline the event is silently dropped by the hub.
type TypingService struct {
	gateway *Gateway
	logger  *zap.Logger
}

func NewTypingService(gateway *Gateway, logger *zap.Logger) *TypingService {
	return &TypingService{gateway: gateway, logger: logger}
}

func (s *TypingService) TypingStart(userKey, userName, recipientKey string) {
	s.gateway.PublishTyping(userKey, userName, recipientKey, true)
	s.logger.Debug("typing start", zap.String("user_key", userKey), zap.String("recipient_key", recipientKey))
}

func (s *TypingService) TypingStop(userKey, userName, recipientKey string) {
	s.gateway.PublishTyping(userKey, userName, recipientKey, false)
	s.logger.Debug("typing stop", zap.String("user_key", userKey), zap.String("recipient_key", recipientKey))
}
