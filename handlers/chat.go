package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"matchroom/contract"
	"matchroom/domain"
)

// ChatHandler relays chat messages inside a room and appends them to
// the write-behind cache. Delivery to online peers never waits on the
// cache: a failed append is reported to the sender but the message
// still goes out.
type ChatHandler struct {
	log      *slog.Logger
	registry contract.IRegistry
	cache    contract.CacheStore
}

func NewChatHandler(log *slog.Logger, registry contract.IRegistry, cache contract.CacheStore) *ChatHandler {
	return &ChatHandler{log: log, registry: registry, cache: cache}
}

func (h *ChatHandler) Handle(ctx context.Context, sess contract.Session, userID, requestID string, payload json.RawMessage, meta map[string]any) {
	var p ChatPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "invalid_payload"))
		return
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		h.registry.SafeSend(sess, domain.Outbound{
			Type:      domain.TypeAck,
			RequestID: requestID,
			Payload:   map[string]any{"status": "empty", "message": "empty_text", "ts": domain.Now()},
		})
		return
	}

	// Explicit room_id wins, then the canonical pair room derived from
	// the recipient; the loose room/meta aliases are last resorts.
	receiver := firstID(p.To, p.Receiver, p.Recipient)
	roomID := strings.TrimSpace(p.RoomID)
	if roomID == "" && receiver != "" {
		roomID = domain.RoomFor(userID, receiver)
	}
	if roomID == "" {
		roomID = strings.TrimSpace(p.Room)
	}
	if roomID == "" {
		roomID = metaString(meta, "room_id")
	}
	if roomID == "" {
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "missing_room_or_to"))
		return
	}

	topic := strings.TrimSpace(p.Topic)
	if topic == "" {
		topic = strings.TrimSpace(p.TopicName)
	}
	if topic == "" {
		topic = domain.DefaultTopic
	}
	topic = strings.ToLower(topic)

	msg := domain.CachedMessage{
		Sender:   userID,
		Receiver: receiver,
		Text:     text,
		Topic:    topic,
		Ts:       domain.Now(),
	}
	if err := h.cache.Append(roomID, msg); err != nil {
		h.log.Error("chat cache append failed", "room", roomID, "error", err)
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "cache_save_failed"))
	}

	h.registry.AddToRoom(userID, roomID)
	if receiver != "" {
		h.registry.AddToRoom(receiver, roomID)
	}

	h.registry.SafeSend(sess, domain.Outbound{
		Type:      domain.TypeAck,
		RequestID: requestID,
		Payload:   map[string]any{"status": "received", "room_id": roomID, "ts": msg.Ts},
	})

	h.registry.BroadcastToRoom(roomID, domain.Outbound{
		Type:      domain.TypeChat,
		RequestID: requestID,
		Payload: map[string]any{
			"room_id":  roomID,
			"sender":   msg.Sender,
			"receiver": msg.Receiver,
			"text":     msg.Text,
			"topic":    msg.Topic,
			"ts":       msg.Ts,
		},
	}, userID)
}
