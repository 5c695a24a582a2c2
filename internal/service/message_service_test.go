package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Mercury/internal/event"
	"Mercury/internal/model"
)

func newMessageFixture(t *testing.T, users ...*model.User) (*MessageService, *fakeMessageRepo, *captureSender) {
	t.Helper()
	messages := newFakeMessageRepo()
	gateway, sender := testGateway()
	svc := NewMessageService(messages, newFakeUserRepo(users...), gateway, zap.NewNop())
	return svc, messages, sender
}

func TestSendMessageDeliversToBothParticipants(t *testing.T) {
	alice := testUser("alice", "Alice")
	bob := testUser("bob", "Bob")
	svc, _, sender := newMessageFixture(t, alice, bob)

	view, err := svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "alice",
		Sender:       alice.Sender(),
		RecipientKey: "bob",
		Content:      "hey bob",
		MessageType:  model.TypeText,
	})
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.NotEmpty(t, view.ID)

	// Both sides receive the same hydrated message; the sender echo carries
	// the server-assigned id.
	for _, userKey := range []string{"alice", "bob"} {
		evs := sender.sentTo(userKey)
		require.Len(t, evs, 1, "user %s", userKey)
		assert.Equal(t, event.EventNewMessage, evs[0].Event)

		var payload event.NewMessagePayload
		require.NoError(t, json.Unmarshal(evs[0].Payload, &payload))
		assert.Equal(t, view.ID, payload.Message.ID)
		assert.Equal(t, "hey bob", payload.Message.Content)
		assert.Equal(t, "Alice", payload.Message.Sender.UserName)
	}

	// The stored message starts with exactly one sent entry for the sender.
	require.Len(t, view.Status, 1)
	assert.Equal(t, "alice", view.Status[0].UserKey)
	assert.Equal(t, model.StatusSent, view.Status[0].Status)
}

func TestSendMessageRejectsSelfSend(t *testing.T) {
	alice := testUser("alice", "Alice")
	svc, _, sender := newMessageFixture(t, alice)

	_, err := svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "alice",
		RecipientKey: "alice",
		Content:      "note to self",
		MessageType:  model.TypeText,
	})
	assert.ErrorIs(t, err, ErrCannotSendToSelf)
	assert.Empty(t, sender.sentTo("alice"))
}

func TestSendMessageRejectsUnknownRecipient(t *testing.T) {
	alice := testUser("alice", "Alice")
	svc, _, _ := newMessageFixture(t, alice)

	_, err := svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "alice",
		RecipientKey: "ghost",
		Content:      "anyone there",
		MessageType:  model.TypeText,
	})
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestSendMessageRejectsBlankContent(t *testing.T) {
	alice := testUser("alice", "Alice")
	bob := testUser("bob", "Bob")
	svc, _, _ := newMessageFixture(t, alice, bob)

	_, err := svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "alice",
		RecipientKey: "bob",
		Content:      "   ",
		MessageType:  model.TypeText,
	})
	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, CodeValidationError, de.Code)
}

func TestSendMessageReplyMustBelongToPair(t *testing.T) {
	alice := testUser("alice", "Alice")
	bob := testUser("bob", "Bob")
	carol := testUser("carol", "Carol")
	svc, _, _ := newMessageFixture(t, alice, bob, carol)

	// A message between alice and carol cannot anchor a reply to bob.
	stray, err := svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "alice",
		Sender:       alice.Sender(),
		RecipientKey: "carol",
		Content:      "side chat",
		MessageType:  model.TypeText,
	})
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "alice",
		RecipientKey: "bob",
		Content:      "re: side chat",
		MessageType:  model.TypeText,
		ReplyTo:      stray.ID,
	})
	assert.ErrorIs(t, err, ErrInvalidReply)

	// Replying within the same pair is fine, in either direction.
	original, err := svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "alice",
		Sender:       alice.Sender(),
		RecipientKey: "bob",
		Content:      "question",
		MessageType:  model.TypeText,
	})
	require.NoError(t, err)

	reply, err := svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "bob",
		Sender:       bob.Sender(),
		RecipientKey: "alice",
		Content:      "answer",
		MessageType:  model.TypeText,
		ReplyTo:      original.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, original.ID, reply.ReplyTo)
}

func TestSendMessageReplyToMissingMessage(t *testing.T) {
	alice := testUser("alice", "Alice")
	bob := testUser("bob", "Bob")
	svc, _, _ := newMessageFixture(t, alice, bob)

	_, err := svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "alice",
		RecipientKey: "bob",
		Content:      "re: nothing",
		MessageType:  model.TypeText,
		ReplyTo:      "64b000000000000000000000",
	})
	assert.ErrorIs(t, err, ErrInvalidReply)
}

func TestMarkDeliveredNotifiesSenderExactlyOnce(t *testing.T) {
	alice := testUser("alice", "Alice")
	bob := testUser("bob", "Bob")
	svc, _, sender := newMessageFixture(t, alice, bob)

	view, err := svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "alice",
		Sender:       alice.Sender(),
		RecipientKey: "bob",
		Content:      "ping",
		MessageType:  model.TypeText,
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkDelivered(context.Background(), view.ID, "bob"))
	// Retried ack: succeeds but stays silent.
	require.NoError(t, svc.MarkDelivered(context.Background(), view.ID, "bob"))

	names := sender.eventNames("alice")
	count := 0
	for _, n := range names {
		if n == event.EventMessageStatusUpdate {
			count++
		}
	}
	assert.Equal(t, 1, count, "sender must hear about the delivery exactly once")
}

func TestMarkDeliveredAfterReadIsSuppressed(t *testing.T) {
	alice := testUser("alice", "Alice")
	bob := testUser("bob", "Bob")
	svc, messages, sender := newMessageFixture(t, alice, bob)

	view, err := svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "alice",
		Sender:       alice.Sender(),
		RecipientKey: "bob",
		Content:      "ping",
		MessageType:  model.TypeText,
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(context.Background(), view.ID, "bob"))
	// An out-of-order delivered ack must not regress the read state.
	require.NoError(t, svc.MarkDelivered(context.Background(), view.ID, "bob"))

	stored, err := messages.FindByID(context.Background(), view.ID)
	require.NoError(t, err)
	s := stored.StatusFor("bob")
	require.NotNil(t, s)
	assert.Equal(t, model.StatusRead, s.Status)

	count := 0
	for _, n := range sender.eventNames("alice") {
		if n == event.EventMessageStatusUpdate {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSendMessageStorageOutageIsNotANotFound(t *testing.T) {
	outage := errors.New("connection refused")
	gateway, _ := testGateway()
	svc := NewMessageService(newFakeMessageRepo(), &failingUserRepo{err: outage}, gateway, zap.NewNop())

	_, err := svc.SendMessage(context.Background(), SendRequest{
		SenderKey:    "alice",
		RecipientKey: "bob",
		Content:      "hello",
		MessageType:  model.TypeText,
	})
	require.Error(t, err)
	// A storage failure must surface as a system error, not a domain code.
	assert.NotErrorIs(t, err, ErrRecipientNotFound)
	var de *DomainError
	assert.False(t, errors.As(err, &de))
	assert.ErrorIs(t, err, outage)
}

func TestMarkDeliveredUnknownMessage(t *testing.T) {
	alice := testUser("alice", "Alice")
	svc, _, _ := newMessageFixture(t, alice)

	err := svc.MarkDelivered(context.Background(), "64b000000000000000000000", "alice")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	err = svc.MarkRead(context.Background(), "not-an-object-id", "alice")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}
