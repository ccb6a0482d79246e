package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"matchroom/domain"
)

// RoomCache is the write-behind message cache, one ordered list per
// room, backed by BadgerDB.
type RoomCache struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomCache(db *badger.DB, log *slog.Logger) RoomCache {
	return RoomCache{db: db, log: log}
}

// Append stores a message at the tail of a room's cache list.
// The key is formatted as "cache:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (c RoomCache) Append(roomID string, msg domain.CachedMessage) error {
	key := fmt.Sprintf("cache:%s:%019d:%s", roomID, time.Now().UnixNano(), uuid.NewString())
	bytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// ReadAll returns every cached message of a room in append order.
// Thanks to the padded timestamp in the key, a forward prefix scan is
// already chronological.
func (c RoomCache) ReadAll(roomID string) ([]domain.CachedMessage, error) {
	var raw [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("cache:%s:", roomID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.CachedMessage, 0, len(raw))
	for _, b := range raw {
		var msg domain.CachedMessage
		if err := json.Unmarshal(b, &msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Clear deletes every cached message of a room.
func (c RoomCache) Clear(roomID string) error {
	prefix := []byte(fmt.Sprintf("cache:%s:", roomID))

	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	batch := c.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return err
		}
	}
	return batch.Flush()
}
