package repositories

import (
	"time"

	"gorm.io/datatypes"
)

// Profile is a user row. Only the attributes the horoscope prompt
// consumes are modeled here; account management lives in another
// service.
type Profile struct {
	ID           int64  `gorm:"primaryKey"`
	UserName     string `gorm:"size:200;not null"`
	EmailID      string `gorm:"size:50;uniqueIndex"`
	Gender       string `gorm:"size:50"`
	Dob          string `gorm:"size:50"`
	PlaceOfBirth string `gorm:"size:150"`
	PhotoURL     string `gorm:"size:255"`
	Preferences  datatypes.JSON
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Profile) TableName() string { return "users" }

// Conversation holds the ordered message list of one pair and topic.
// The pair is stored canonically (User1ID < User2ID) and the topic
// lower-cased, so the unique index is order- and case-independent.
type Conversation struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	User1ID   int64          `gorm:"not null;uniqueIndex:ix_conversation_pair_topic,priority:1"`
	User2ID   int64          `gorm:"not null;uniqueIndex:ix_conversation_pair_topic,priority:2"`
	Topic     string         `gorm:"size:200;uniqueIndex:ix_conversation_pair_topic,priority:3"`
	Messages  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Conversation) TableName() string { return "chat" }

// Report is the relationship report of one canonical pair: a static
// horoscope value computed at most once, plus the running sentiment
// aggregate.
type Report struct {
	ID              int64 `gorm:"primaryKey;autoIncrement"`
	User1ID         int64 `gorm:"not null;uniqueIndex:ix_report_pair,priority:1"`
	User2ID         int64 `gorm:"not null;uniqueIndex:ix_report_pair,priority:2"`
	HoroscopeScore  *float64
	SentimentSum    float64 `gorm:"not null;default:0"`
	SentimentCount  int     `gorm:"not null;default:0"`
	SentimentAvg    *float64
	LastSentimentAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Report) TableName() string { return "report" }

// Models lists every gorm model for AutoMigrate at the composition root.
func Models() []any {
	return []any{&Profile{}, &Conversation{}, &Report{}}
}
