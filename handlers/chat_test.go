package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"matchroom/domain"
	"matchroom/mocks"
)

func Test_ChatHandler_DeliversToRoomAndAcks(t *testing.T) {
	r := require.New(t)
	ctrl := gomock.NewController(t)

	// Given two connected users and a working cache
	registry := testRegistry()
	sender, receiver := &fakeSession{}, &fakeSession{}
	registry.Register("3", sender)
	registry.Register("5", receiver)

	cache := mocks.NewMockCacheStore(ctrl)
	cache.EXPECT().Append("3_5", gomock.Any()).DoAndReturn(func(roomID string, msg domain.CachedMessage) error {
		r.Equal("3", msg.Sender)
		r.Equal("5", msg.Receiver)
		r.Equal("hello", msg.Text)
		r.Equal("general", msg.Topic)
		return nil
	})

	h := NewChatHandler(testLogger(), registry, cache)

	// When user 3 sends a chat frame addressed to user 5
	h.Handle(context.Background(), sender, "3", "req-1", json.RawMessage(`{"text":"hello","to":"5"}`), nil)

	// Then the sender gets an ack naming the canonical room
	ack, ok := frameOfType(sender.sent(), domain.TypeAck)
	r.True(ok)
	r.Equal("received", ack.Payload["status"])
	r.Equal("3_5", ack.Payload["room_id"])

	// Then the recipient gets the message, the sender does not echo it
	msg, ok := frameOfType(receiver.sent(), domain.TypeChat)
	r.True(ok)
	r.Equal("hello", msg.Payload["text"])
	r.Equal("3", msg.Payload["sender"])
	_, echoed := frameOfType(sender.sent(), domain.TypeChat)
	r.False(echoed)

	// Then both users joined the room
	r.ElementsMatch([]string{"3", "5"}, registry.RoomMembers("3_5"))
}

func Test_ChatHandler_EmptyText_AckedWithoutDelivery(t *testing.T) {
	r := require.New(t)
	ctrl := gomock.NewController(t)

	// Given a connected sender; the cache must never be touched
	registry := testRegistry()
	sender := &fakeSession{}
	registry.Register("3", sender)
	cache := mocks.NewMockCacheStore(ctrl)

	h := NewChatHandler(testLogger(), registry, cache)

	// When the frame carries only whitespace text
	h.Handle(context.Background(), sender, "3", "req-1", json.RawMessage(`{"text":"   ","to":"5"}`), nil)

	// Then the sender gets an empty-status ack and no room is formed
	ack, ok := frameOfType(sender.sent(), domain.TypeAck)
	r.True(ok)
	r.Equal("empty", ack.Payload["status"])
	r.Empty(registry.RoomMembers("3_5"))
}

func Test_ChatHandler_MissingRoomAndRecipient_Errors(t *testing.T) {
	r := require.New(t)
	ctrl := gomock.NewController(t)

	registry := testRegistry()
	sender := &fakeSession{}
	registry.Register("3", sender)

	h := NewChatHandler(testLogger(), registry, mocks.NewMockCacheStore(ctrl))

	// When the frame has text but no addressing information
	h.Handle(context.Background(), sender, "3", "req-1", json.RawMessage(`{"text":"hi"}`), nil)

	// Then the sender is told what was missing; nothing was delivered
	errFrame, ok := frameOfType(sender.sent(), domain.TypeError)
	r.True(ok)
	r.Equal("missing_room_or_to", errFrame.Payload["message"])
	r.Len(sender.sent(), 1)
}

func Test_ChatHandler_CacheFailure_StillDelivers(t *testing.T) {
	r := require.New(t)
	ctrl := gomock.NewController(t)

	// Given a cache that rejects the append
	registry := testRegistry()
	sender, receiver := &fakeSession{}, &fakeSession{}
	registry.Register("3", sender)
	registry.Register("5", receiver)

	cache := mocks.NewMockCacheStore(ctrl)
	cache.EXPECT().Append("3_5", gomock.Any()).Return(fmt.Errorf("disk full"))

	h := NewChatHandler(testLogger(), registry, cache)

	// When the message is sent anyway
	h.Handle(context.Background(), sender, "3", "req-1", json.RawMessage(`{"text":"hello","to":"5"}`), nil)

	// Then the sender learns about the cache failure but delivery and
	// the ack still happen
	errFrame, ok := frameOfType(sender.sent(), domain.TypeError)
	r.True(ok)
	r.Equal("cache_save_failed", errFrame.Payload["message"])
	_, acked := frameOfType(sender.sent(), domain.TypeAck)
	r.True(acked)
	_, delivered := frameOfType(receiver.sent(), domain.TypeChat)
	r.True(delivered)
}

func Test_ChatHandler_ExplicitRoomWithoutRecipient(t *testing.T) {
	r := require.New(t)
	ctrl := gomock.NewController(t)

	registry := testRegistry()
	sender := &fakeSession{}
	registry.Register("3", sender)

	cache := mocks.NewMockCacheStore(ctrl)
	cache.EXPECT().Append("7_9", gomock.Any()).Return(nil)

	h := NewChatHandler(testLogger(), registry, cache)

	// When the frame names a room directly instead of a recipient
	h.Handle(context.Background(), sender, "3", "req-1", json.RawMessage(`{"text":"hi","room_id":"7_9"}`), nil)

	// Then the message lands in that room and only the sender joined it
	ack, ok := frameOfType(sender.sent(), domain.TypeAck)
	r.True(ok)
	r.Equal("7_9", ack.Payload["room_id"])
	r.ElementsMatch([]string{"3"}, registry.RoomMembers("7_9"))
}

func Test_ChatHandler_RecipientBeatsLooseRoomAlias(t *testing.T) {
	r := require.New(t)
	ctrl := gomock.NewController(t)

	registry := testRegistry()
	sender, receiver := &fakeSession{}, &fakeSession{}
	registry.Register("3", sender)
	registry.Register("5", receiver)

	cache := mocks.NewMockCacheStore(ctrl)
	cache.EXPECT().Append("3_5", gomock.Any()).Return(nil)

	h := NewChatHandler(testLogger(), registry, cache)

	// When the frame carries both a recipient and a loose room alias
	h.Handle(context.Background(), sender, "3", "req-1",
		json.RawMessage(`{"text":"hello","to":"5","room":"lobby"}`), nil)

	// Then the canonical pair room wins and the recipient gets the message
	ack, ok := frameOfType(sender.sent(), domain.TypeAck)
	r.True(ok)
	r.Equal("3_5", ack.Payload["room_id"])
	_, delivered := frameOfType(receiver.sent(), domain.TypeChat)
	r.True(delivered)
	r.Empty(registry.RoomMembers("lobby"))
}

func Test_ChatHandler_NumericRecipientAlias(t *testing.T) {
	r := require.New(t)
	ctrl := gomock.NewController(t)

	registry := testRegistry()
	sender := &fakeSession{}
	registry.Register("5", sender)

	cache := mocks.NewMockCacheStore(ctrl)
	cache.EXPECT().Append("3_5", gomock.Any()).Return(nil)

	h := NewChatHandler(testLogger(), registry, cache)

	// When the recipient arrives as a JSON number under an alias key
	h.Handle(context.Background(), sender, "5", "req-1", json.RawMessage(`{"text":"hey","receiver":3}`), nil)

	// Then the room is still the canonical pair room
	ack, ok := frameOfType(sender.sent(), domain.TypeAck)
	r.True(ok)
	r.Equal("3_5", ack.Payload["room_id"])
}
