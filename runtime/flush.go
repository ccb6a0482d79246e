package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"matchroom/contract"
	"matchroom/domain"
	apperrors "matchroom/errors"
)

// FlushWorker drains the room cache into the durable conversation
// store whenever a room's last participant leaves. The ordering
// invariant of the whole pipeline lives here: the durable write
// happens first, the cache is cleared only after it succeeds.
type FlushWorker struct {
	log           *slog.Logger
	cache         contract.CacheStore
	conversations contract.ConversationRepository
	vacated       <-chan string
}

func NewFlushWorker(log *slog.Logger, cache contract.CacheStore,
	conversations contract.ConversationRepository, vacated <-chan string) *FlushWorker {
	return &FlushWorker{
		log:           log,
		cache:         cache,
		conversations: conversations,
		vacated:       vacated,
	}
}

func (w *FlushWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case roomID := <-w.vacated:
			if err := w.Flush(roomID); err != nil {
				w.log.Error("flush failed, cache preserved", "room_id", roomID, "error", err)
			}
		}
	}
}

// Flush persists all cached messages of a room as one append to the
// conversation record, then clears the cache. On any failure the cache
// is left intact; the messages wait for the next vacancy of the room.
func (w *FlushWorker) Flush(roomID string) error {
	messages, err := w.cache.ReadAll(roomID)
	if err != nil {
		return fmt.Errorf("reading cache for room %s: %w", roomID, err)
	}
	if len(messages) == 0 {
		return nil
	}

	pair, err := resolveParticipants(roomID, messages)
	if err != nil {
		return err
	}

	topic := messages[0].Topic
	if topic == "" {
		topic = domain.DefaultTopic
	}

	stored := lo.Map(messages, func(msg domain.CachedMessage, _ int) domain.StoredMessage {
		return domain.StoredMessage{
			Sender:    msg.Sender,
			Text:      msg.Text,
			Timestamp: msg.Ts,
		}
	})

	// Store first. Only a successful durable write may clear the cache.
	if err := w.conversations.AppendMessages(pair, topic, stored); err != nil {
		return fmt.Errorf("persisting %d messages for room %s: %w", len(stored), roomID, err)
	}

	if err := w.cache.Clear(roomID); err != nil {
		// Already durable; a failed clear means duplicates on the next
		// flush, never data loss.
		w.log.Error("clearing cache after successful flush", "room_id", roomID, "error", err)
		return nil
	}

	w.log.Info(fmt.Sprintf("flushed %d messages from room %s", len(stored), roomID))
	return nil
}

// resolveParticipants derives the conversation pair from the union of
// sender/receiver fields across the cached messages, falling back to
// the ids encoded in the room label. Anything other than exactly two
// numeric identities aborts the flush.
func resolveParticipants(roomID string, messages []domain.CachedMessage) (domain.PairKey, error) {
	seen := make(map[string]struct{})
	for _, msg := range messages {
		if msg.Sender != "" {
			seen[msg.Sender] = struct{}{}
		}
		if msg.Receiver != "" {
			seen[msg.Receiver] = struct{}{}
		}
	}

	if len(seen) < 2 {
		if a, b, ok := domain.SplitRoom(roomID); ok {
			seen[a] = struct{}{}
			seen[b] = struct{}{}
		}
	}

	ids := lo.Keys(seen)
	if len(ids) < 2 {
		return domain.PairKey{}, fmt.Errorf("room %s: %w", roomID, apperrors.ErrAmbiguousRoom)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })

	pair, err := domain.ParsePairKey(ids[0], ids[1])
	if err != nil {
		return domain.PairKey{}, fmt.Errorf("room %s: %w", roomID, apperrors.ErrAmbiguousRoom)
	}
	return pair, nil
}

// lessID orders ids numerically when both sides parse, lexically
// otherwise, so the two lowest participants are picked predictably.
func lessID(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
