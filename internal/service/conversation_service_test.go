package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Mercury/internal/model"
)

func newConversationFixture(t *testing.T, users ...*model.User) (*ConversationService, *fakeMessageRepo) {
	t.Helper()
	messages := newFakeMessageRepo()
	svc := NewConversationService(messages, newFakeUserRepo(users...), zap.NewNop())
	return svc, messages
}

func seedMessage(t *testing.T, repo *fakeMessageRepo, senderKey, recipientKey, content string, at time.Time, extra ...model.StatusEntry) string {
	t.Helper()
	msg := &model.Message{
		SenderKey:    senderKey,
		RecipientKey: recipientKey,
		Content:      content,
		MessageType:  model.TypeText,
		Status: append([]model.StatusEntry{
			{UserKey: senderKey, Status: model.StatusSent, Timestamp: at},
		}, extra...),
		CreatedAt: at,
	}
	id, err := repo.Insert(context.Background(), msg)
	require.NoError(t, err)
	return id
}

func TestListConversationsGroupsByPartner(t *testing.T) {
	alice := testUser("alice", "Alice")
	bob := testUser("bob", "Bob")
	carol := testUser("carol", "Carol")
	svc, messages := newConversationFixture(t, alice, bob, carol)

	base := time.Now().Add(-time.Hour)
	seedMessage(t, messages, "alice", "bob", "hi bob", base)
	seedMessage(t, messages, "bob", "alice", "hi alice", base.Add(time.Minute),
		model.StatusEntry{UserKey: "alice", Status: model.StatusRead})
	seedMessage(t, messages, "bob", "alice", "still there?", base.Add(2*time.Minute))
	seedMessage(t, messages, "carol", "alice", "lunch?", base.Add(3*time.Minute))

	payload, err := svc.ListConversations(context.Background(), "alice", 1, 50)
	require.NoError(t, err)
	require.Len(t, payload.Conversations, 2)
	assert.Equal(t, int64(2), payload.Pagination.TotalConversations)

	// Ordered by last-message recency: carol's message is the newest.
	carolConv := payload.Conversations[0]
	assert.Equal(t, "carol", carolConv.PartnerKey)
	assert.Equal(t, int64(1), carolConv.MessageCount)
	assert.Equal(t, int64(1), carolConv.UnreadCount)
	require.NotNil(t, carolConv.LastMessage)
	assert.Equal(t, "lunch?", carolConv.LastMessage.Content)

	bobConv := payload.Conversations[1]
	assert.Equal(t, "bob", bobConv.PartnerKey)
	assert.Equal(t, int64(3), bobConv.MessageCount)
	// One inbound message was read, one was not; outbound never counts.
	assert.Equal(t, int64(1), bobConv.UnreadCount)
	assert.Equal(t, "still there?", bobConv.LastMessage.Content)
}

func TestListConversationsPaginatesPartners(t *testing.T) {
	alice := testUser("alice", "Alice")
	svc, messages := newConversationFixture(t, alice)

	base := time.Now().Add(-time.Hour)
	seedMessage(t, messages, "p1", "alice", "one", base)
	seedMessage(t, messages, "p2", "alice", "two", base.Add(time.Minute))
	seedMessage(t, messages, "p3", "alice", "three", base.Add(2*time.Minute))

	page1, err := svc.ListConversations(context.Background(), "alice", 1, 2)
	require.NoError(t, err)
	require.Len(t, page1.Conversations, 2)
	assert.Equal(t, "p3", page1.Conversations[0].PartnerKey)
	assert.Equal(t, "p2", page1.Conversations[1].PartnerKey)
	assert.Equal(t, int64(3), page1.Pagination.TotalConversations)
	assert.Equal(t, int64(1), page1.Pagination.CurrentPage)

	page2, err := svc.ListConversations(context.Background(), "alice", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2.Conversations, 1)
	assert.Equal(t, "p1", page2.Conversations[0].PartnerKey)

	// Past the end: empty page, same totals.
	page3, err := svc.ListConversations(context.Background(), "alice", 3, 2)
	require.NoError(t, err)
	assert.Empty(t, page3.Conversations)
	assert.Equal(t, int64(3), page3.Pagination.TotalConversations)
}

func TestListConversationsEmpty(t *testing.T) {
	alice := testUser("alice", "Alice")
	svc, _ := newConversationFixture(t, alice)

	payload, err := svc.ListConversations(context.Background(), "alice", 1, 50)
	require.NoError(t, err)
	assert.Empty(t, payload.Conversations)
	assert.Equal(t, int64(0), payload.Pagination.TotalConversations)
}

func TestDeletedMessagesStayOutOfConversations(t *testing.T) {
	alice := testUser("alice", "Alice")
	bob := testUser("bob", "Bob")
	svc, messages := newConversationFixture(t, alice, bob)

	base := time.Now().Add(-time.Hour)
	seedMessage(t, messages, "bob", "alice", "keep", base)
	deleted := seedMessage(t, messages, "bob", "alice", "retract", base.Add(time.Minute))
	require.NoError(t, messages.SoftDelete(context.Background(), deleted))

	payload, err := svc.ListConversations(context.Background(), "alice", 1, 50)
	require.NoError(t, err)
	require.Len(t, payload.Conversations, 1)
	assert.Equal(t, int64(1), payload.Conversations[0].MessageCount)
	assert.Equal(t, "keep", payload.Conversations[0].LastMessage.Content)

	conv, err := svc.GetConversation(context.Background(), "alice", alice.Sender(), "bob", 1, 50)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "keep", conv.Messages[0].Content)
}

func TestGetConversationUnknownPartner(t *testing.T) {
	alice := testUser("alice", "Alice")
	svc, _ := newConversationFixture(t, alice)

	_, err := svc.GetConversation(context.Background(), "alice", alice.Sender(), "ghost", 1, 50)
	assert.ErrorIs(t, err, ErrPartnerNotFound)
}

func TestGetConversationStorageOutageIsNotPartnerNotFound(t *testing.T) {
	outage := errors.New("no reachable servers")
	alice := testUser("alice", "Alice")
	svc := NewConversationService(newFakeMessageRepo(), &failingUserRepo{err: outage}, zap.NewNop())

	_, err := svc.GetConversation(context.Background(), "alice", alice.Sender(), "bob", 1, 50)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPartnerNotFound)
	assert.ErrorIs(t, err, outage)
}

func TestGetConversationHydratesNewestFirst(t *testing.T) {
	alice := testUser("alice", "Alice")
	bob := testUser("bob", "Bob")
	carol := testUser("carol", "Carol")
	svc, messages := newConversationFixture(t, alice, bob, carol)

	base := time.Now().Add(-time.Hour)
	seedMessage(t, messages, "alice", "bob", "first", base)
	seedMessage(t, messages, "bob", "alice", "second", base.Add(time.Minute))
	// Noise from another pair must not leak in.
	seedMessage(t, messages, "carol", "alice", "other thread", base.Add(2*time.Minute))

	payload, err := svc.GetConversation(context.Background(), "alice", alice.Sender(), "bob", 1, 50)
	require.NoError(t, err)
	require.Len(t, payload.Messages, 2)
	assert.Equal(t, int64(2), payload.Pagination.TotalMessages)

	assert.Equal(t, "second", payload.Messages[0].Content)
	assert.Equal(t, "Bob", payload.Messages[0].Sender.UserName)
	assert.Equal(t, "first", payload.Messages[1].Content)
	assert.Equal(t, "Alice", payload.Messages[1].Sender.UserName)
}
