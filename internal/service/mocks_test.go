package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"Mercury/internal/db"
	"Mercury/internal/event"
	"Mercury/internal/model"
	"Mercury/internal/repo"
)

// captureSender records every outbound event instead of writing to a socket.
type captureSender struct {
	mu         sync.Mutex
	byUser     map[string][]event.WsEvent
	broadcasts []event.WsEvent
}

func newCaptureSender() *captureSender {
	return &captureSender{byUser: make(map[string][]event.WsEvent)}
}

func (c *captureSender) ToUser(userKey string, ev event.WsEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byUser[userKey] = append(c.byUser[userKey], ev)
}

func (c *captureSender) Broadcast(ev event.WsEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcasts = append(c.broadcasts, ev)
}

func (c *captureSender) sentTo(userKey string) []event.WsEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.WsEvent(nil), c.byUser[userKey]...)
}

func (c *captureSender) eventNames(userKey string) []string {
	evs := c.sentTo(userKey)
	names := make([]string, 0, len(evs))
	for _, ev := range evs {
		names = append(names, ev.Event)
	}
	return names
}

// fakeUserRepo is an in-memory UserRepository keyed by userKey.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		r.users[u.UserKey] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	r.users[user.UserKey] = user
	return user.ID.Hex(), nil
}

func (r *fakeUserRepo) FindByUserKey(_ context.Context, userKey string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userKey]
	if !ok {
		return nil, repo.ErrUserMissing
	}
	return u, nil
}

func (r *fakeUserRepo) FindByPhoneNumber(_ context.Context, phone string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PhoneNumber == phone {
			return u, nil
		}
	}
	return nil, repo.ErrUserMissing
}

func (r *fakeUserRepo) SetOnlineStatus(_ context.Context, userKey string, isOnline bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userKey]; ok {
		u.IsOnline = isOnline
	}
	return nil
}

// failingUserRepo simulates a storage outage: every call fails with the
// injected error.
type failingUserRepo struct {
	err error
}

func (r *failingUserRepo) Create(context.Context, *model.User) (string, error) {
	return "", r.err
}

func (r *failingUserRepo) FindByUserKey(context.Context, string) (*model.User, error) {
	return nil, r.err
}

func (r *failingUserRepo) FindByPhoneNumber(context.Context, string) (*model.User, error) {
	return nil, r.err
}

func (r *failingUserRepo) SetOnlineStatus(context.Context, string, bool) error {
	return r.err
}

// fakeMessageRepo is an in-memory MessageRepository with the same conditional
// append contract as the Mongo implementation.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*model.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*model.Message)}
}

func (r *fakeMessageRepo) Insert(_ context.Context, msg *model.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	stored := *msg
	r.messages[msg.ID.Hex()] = &stored
	return msg.ID.Hex(), nil
}

func (r *fakeMessageRepo) FindByID(_ context.Context, id string) (*model.Message, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, repo.ErrInvalidMessageID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[id]
	if !ok || msg.DeletedAt != nil {
		return nil, repo.ErrMessageMissing
	}
	copied := *msg
	return &copied, nil
}

func (r *fakeMessageRepo) FindBetweenPaginated(_ context.Context, userKey, partnerKey string, page, pageSize int64) (*db.PaginatedResult[model.Message], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []model.Message
	for _, msg := range r.messages {
		if msg.DeletedAt == nil && msg.InvolvesPair(userKey, partnerKey) {
			matched = append(matched, *msg)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	totalPages := total / pageSize
	if total%pageSize > 0 {
		totalPages++
	}

	return &db.PaginatedResult[model.Message]{
		Data:       matched[start:end],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (r *fakeMessageRepo) FindByParticipant(_ context.Context, userKey string) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []model.Message
	for _, msg := range r.messages {
		if msg.DeletedAt == nil && (msg.SenderKey == userKey || msg.RecipientKey == userKey) {
			matched = append(matched, *msg)
		}
	}
	return matched, nil
}

func (r *fakeMessageRepo) FindUndelivered(_ context.Context, userKey string) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []model.Message
	for _, msg := range r.messages {
		if msg.DeletedAt != nil || msg.RecipientKey != userKey {
			continue
		}
		s := msg.StatusFor(userKey)
		if s != nil && model.StatusRank(s.Status) >= model.StatusRank(model.StatusDelivered) {
			continue
		}
		matched = append(matched, *msg)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

func (r *fakeMessageRepo) AppendStatus(_ context.Context, messageID, userKey, status string) (*model.Message, bool, error) {
	if _, err := primitive.ObjectIDFromHex(messageID); err != nil {
		return nil, false, repo.ErrInvalidMessageID
	}
	if model.StatusRank(status) == 0 {
		return nil, false, fmt.Errorf("unknown message status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[messageID]
	if !ok || msg.DeletedAt != nil {
		return nil, false, repo.ErrMessageMissing
	}

	if s := msg.StatusFor(userKey); s != nil && model.StatusRank(s.Status) >= model.StatusRank(status) {
		copied := *msg
		return &copied, false, nil
	}

	msg.Status = append(msg.Status, model.StatusEntry{UserKey: userKey, Status: status})
	copied := *msg
	return &copied, true, nil
}

func (r *fakeMessageRepo) SoftDelete(_ context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[messageID]
	if !ok {
		return repo.ErrMessageMissing
	}
	now := time.Now()
	msg.DeletedAt = &now
	return nil
}

func testUser(userKey, userName string) *model.User {
	return &model.User{
		ID:          primitive.NewObjectID(),
		UserKey:     userKey,
		UserName:    userName,
		PhoneNumber: "+1000" + userKey,
		FullName:    userName,
	}
}

func testGateway() (*Gateway, *captureSender) {
	sender := newCaptureSender()
	return NewGateway(sender, zap.NewNop()), sender
}
