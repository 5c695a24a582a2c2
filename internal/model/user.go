package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in MongoDB. UserKey is the stable external
// identity handed out at registration; it never changes even if the document
// is recreated.
type User struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserKey     string             `json:"userKey" bson:"user_key"`
	UserName    string             `json:"userName" bson:"user_name"`
	PhoneNumber string             `json:"phoneNumber" bson:"phone_number"`
	FullName    string             `json:"fullName" bson:"full_name"`
	Avatar      string             `json:"avatar" bson:"avatar"`
	IsOnline    bool               `json:"isOnline" bson:"is_online"`
	LastSeen    *time.Time         `json:"lastSeen" bson:"last_seen"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   *time.Time         `json:"updatedAt" bson:"updated_at"`
	DeletedAt   *time.Time         `json:"-" bson:"deleted_at"`
}

// SenderInfo is the display subset of a user attached to hydrated messages.
type SenderInfo struct {
	UserKey  string `json:"userKey"`
	UserName string `json:"userName"`
	Avatar   string `json:"avatar"`
}

func (u *User) Sender() SenderInfo {
	return SenderInfo{UserKey: u.UserKey, UserName: u.UserName, Avatar: u.Avatar}
}
