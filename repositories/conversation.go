package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"matchroom/domain"
	apperrors "matchroom/errors"
)

// ConversationRepository persists conversation records, append-only per
// canonical pair and lower-cased topic.
type ConversationRepository struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewConversationRepository(db *gorm.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

// Find returns the ordered message list for a pair and topic, or
// errors.ErrConversationNotFound when no record exists yet.
func (r ConversationRepository) Find(pair domain.PairKey, topic string) ([]domain.StoredMessage, error) {
	var record Conversation
	err := r.db.
		Where("user1_id = ? AND user2_id = ? AND topic = ?", pair.Low, pair.High, strings.ToLower(topic)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding conversation: %w", err)
	}
	return decodeMessages(record.Messages)
}

// AppendMessages extends the record's message list, creating the record
// if absent, as one transaction. Ordering within the list is append
// order.
func (r ConversationRepository) AppendMessages(pair domain.PairKey, topic string, msgs []domain.StoredMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	topic = strings.ToLower(topic)

	return r.db.Transaction(func(tx *gorm.DB) error {
		var record Conversation
		err := tx.Where("user1_id = ? AND user2_id = ? AND topic = ?", pair.Low, pair.High, topic).
			First(&record).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			encoded, marshalErr := json.Marshal(msgs)
			if marshalErr != nil {
				return marshalErr
			}
			record = Conversation{
				User1ID:  pair.Low,
				User2ID:  pair.High,
				Topic:    topic,
				Messages: encoded,
			}
			return tx.Create(&record).Error

		case err != nil:
			return fmt.Errorf("finding conversation: %w", err)
		}

		existing, decodeErr := decodeMessages(record.Messages)
		if decodeErr != nil {
			return decodeErr
		}
		encoded, marshalErr := json.Marshal(append(existing, msgs...))
		if marshalErr != nil {
			return marshalErr
		}
		return tx.Model(&record).Updates(map[string]any{
			"messages":   encoded,
			"updated_at": time.Now().UTC(),
		}).Error
	})
}

func decodeMessages(raw []byte) ([]domain.StoredMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var msgs []domain.StoredMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("decoding message list: %w", err)
	}
	return msgs, nil
}
