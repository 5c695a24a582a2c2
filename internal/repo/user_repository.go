package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"Mercury/internal/db"
	"Mercury/internal/model"
)

var ErrUserMissing = errors.New("user not found")

// UserRepository covers the thin user CRUD plus the presence mutations owned
// by the connection manager.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) (string, error)
	FindByUserKey(ctx context.Context, userKey string) (*model.User, error)
	FindByPhoneNumber(ctx context.Context, phoneNumber string) (*model.User, error)
	SetOnlineStatus(ctx context.Context, userKey string, isOnline bool) error
}

type userRepository struct {
	con       *mongo.Database
	mongoRepo *db.Repository[model.User]
}

func NewUserRepository(con *mongo.Database, repo *db.Repository[model.User]) UserRepository {
	return &userRepository{
		con:       con,
		mongoRepo: repo,
	}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (string, error) {
	user.CreatedAt = time.Now()
	result, err := r.mongoRepo.Create(ctx, *user)
	if err != nil {
		return "", err
	}
	if oid, ok := result.InsertedID.(interface{ Hex() string }); ok {
		return oid.Hex(), nil
	}
	return "", nil
}

func (r *userRepository) FindByUserKey(ctx context.Context, userKey string) (*model.User, error) {
	user, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("user_key", userKey).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserMissing
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	return user, nil
}

func (r *userRepository) FindByPhoneNumber(ctx context.Context, phoneNumber string) (*model.User, error) {
	user, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("phone_number", phoneNumber).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserMissing
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	return user, nil
}

// SetOnlineStatus flips the presence flag; last_seen only moves when the
// user goes offline.
func (r *userRepository) SetOnlineStatus(ctx context.Context, userKey string, isOnline bool) error {
	update := bson.M{"is_online": isOnline}
	if !isOnline {
		update["last_seen"] = time.Now()
	}

	_, err := r.mongoRepo.Update(ctx, db.NewFilter().Eq("user_key", userKey).Build(), update)
	return err
}
