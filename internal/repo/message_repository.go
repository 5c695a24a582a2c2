package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"Mercury/internal/db"
	"Mercury/internal/model"
)

var (
	ErrMessageMissing   = errors.New("message not found")
	ErrInvalidMessage   = errors.New("invalid message: message cannot be nil")
	ErrInvalidMessageID = errors.New("invalid message id")
	ErrOperationTimeout = errors.New("operation timeout exceeded")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

// MessageRepository is the persistence contract of the delivery engine and
// the conversation aggregator.
type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (string, error)
	FindByID(ctx context.Context, id string) (*model.Message, error)
	FindBetweenPaginated(ctx context.Context, userKey, partnerKey string, page, pageSize int64) (*db.PaginatedResult[model.Message], error)
	FindByParticipant(ctx context.Context, userKey string) ([]model.Message, error)
	FindUndelivered(ctx context.Context, userKey string) ([]model.Message, error)
	AppendStatus(ctx context.Context, messageID, userKey, status string) (*model.Message, bool, error)
	SoftDelete(ctx context.Context, messageID string) error
}

type messageRepository struct {
	con       *mongo.Database
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(con *mongo.Database, repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		con:       con,
		mongoRepo: repo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// Insert
// -----------------------------------------------------------------------------

func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (string, error) {
	if msg == nil {
		return "", ErrInvalidMessage
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return "", err
			}
		}

		result, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			insertedID := ""
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				insertedID = oid.Hex()
			}

			m.logger.Info("message inserted",
				zap.String("inserted_id", insertedID),
				zap.String("sender_key", msg.SenderKey),
				zap.String("recipient_key", msg.RecipientKey),
				zap.Int("attempt", attempt+1),
			)
			return insertedID, nil
		}

		lastErr = err

		if !m.isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries", zap.Error(lastErr))
	return "", fmt.Errorf("insert message failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

func (m *messageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, ErrInvalidMessageID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageMissing
		}
		return nil, m.handleReadError(err, id)
	}
	return msg, nil
}

func pairFilter(userKey, partnerKey string) bson.M {
	return db.NewFilter().Or(
		bson.M{"sender_key": userKey, "recipient_key": partnerKey},
		bson.M{"sender_key": partnerKey, "recipient_key": userKey},
	).Build()
}

func (m *messageRepository) FindBetweenPaginated(ctx context.Context, userKey, partnerKey string, page, pageSize int64) (*db.PaginatedResult[model.Message], error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	result, err := m.mongoRepo.FindWithPagination(ctx, pairFilter(userKey, partnerKey), db.PaginationParams{
		Page:     page,
		PageSize: pageSize,
		SortBy:   "created_at",
		SortDesc: true,
	})
	if err != nil {
		return nil, m.handleReadError(err, userKey)
	}

	m.logger.Debug("messages between users",
		zap.String("user_key", userKey),
		zap.String("partner_key", partnerKey),
		zap.Int("count", len(result.Data)),
		zap.Int64("total", result.Total),
	)
	return result, nil
}

func (m *messageRepository) FindByParticipant(ctx context.Context, userKey string) ([]model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Or(
		bson.M{"sender_key": userKey},
		bson.M{"recipient_key": userKey},
	).Build()

	msgs, err := m.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, m.handleReadError(err, userKey)
	}
	return msgs, nil
}

// FindUndelivered returns live messages addressed to the user that have no
// delivered-or-later status entry for them yet.
func (m *messageRepository) FindUndelivered(ctx context.Context, userKey string) ([]model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("recipient_key", userKey).
		NotElemMatch("message_status", bson.M{
			"user_key": userKey,
			"status":   bson.M{"$in": equalOrLater(model.StatusDelivered)},
		}).
		Build()

	msgs, err := m.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, m.handleReadError(err, userKey)
	}
	return msgs, nil
}

// -----------------------------------------------------------------------------
// AppendStatus - atomic conditional status append
// -----------------------------------------------------------------------------

// equalOrLater returns the statuses ranked equal to or above the given one.
func equalOrLater(status string) []string {
	rank := model.StatusRank(status)
	out := make([]string, 0, 3)
	for _, s := range []string{model.StatusSent, model.StatusDelivered, model.StatusRead} {
		if model.StatusRank(s) >= rank {
			out = append(out, s)
		}
	}
	return out
}

// AppendStatus pushes a status entry for (messageID, userKey) in a single
// conditional UpdateOne. The filter excludes documents that already carry an
// equal-or-later entry for the user, so duplicate acks and regressions
// (delivered after read) both come back as appended=false with the current
// message, and two concurrent acks cannot both append.
func (m *messageRepository) AppendStatus(ctx context.Context, messageID, userKey, status string) (*model.Message, bool, error) {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, false, ErrInvalidMessageID
	}
	if model.StatusRank(status) == 0 {
		return nil, false, fmt.Errorf("unknown message status %q", status)
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("_id", oid).
		NotElemMatch("message_status", bson.M{
			"user_key": userKey,
			"status":   bson.M{"$in": equalOrLater(status)},
		}).
		Build()

	update := bson.M{"$push": bson.M{"message_status": model.StatusEntry{
		UserKey:   userKey,
		Status:    status,
		Timestamp: time.Now(),
	}}}

	result, err := m.mongoRepo.UpdateRaw(ctx, filter, update)
	if err != nil {
		return nil, false, fmt.Errorf("append status failed: %w", err)
	}

	msg, err := m.FindByID(ctx, messageID)
	if err != nil {
		return nil, false, err
	}

	appended := result.ModifiedCount > 0
	if appended {
		m.logger.Debug("status appended",
			zap.String("message_id", messageID),
			zap.String("user_key", userKey),
			zap.String("status", status),
		)
	}
	return msg, appended, nil
}

func (m *messageRepository) SoftDelete(ctx context.Context, messageID string) error {
	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := m.mongoRepo.SoftDeleteByID(ctx, messageID)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrMessageMissing
	}
	return nil
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (m *messageRepository) ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func (m *messageRepository) waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (m *messageRepository) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

func (m *messageRepository) handleReadError(err error, subject string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("subject", subject))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("subject", subject))
		return err
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("subject", subject))
	return fmt.Errorf("message query failed: %w", err)
}
