package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gorm.io/gorm"

	"matchroom/domain"
	apperrors "matchroom/errors"
)

// ReportRepository stores at most one relationship report per canonical
// pair.
type ReportRepository struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewReportRepository(db *gorm.DB, log *slog.Logger) ReportRepository {
	return ReportRepository{db: db, log: log}
}

// Find returns the report aggregate for a pair, or
// errors.ErrReportNotFound.
func (r ReportRepository) Find(pair domain.PairKey) (domain.ReportAggregate, error) {
	var record Report
	err := r.db.Where("user1_id = ? AND user2_id = ?", pair.Low, pair.High).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ReportAggregate{}, apperrors.ErrReportNotFound
	}
	if err != nil {
		return domain.ReportAggregate{}, fmt.Errorf("finding report: %w", err)
	}
	return toAggregate(record), nil
}

// Create inserts a report with the given static horoscope value (nil is
// allowed) and a zeroed aggregate. A pre-existing pair yields
// errors.ErrReportExists; two concurrent first-contact workflows racing
// on the same pair both land here and the loser must treat it as
// success-equivalent.
func (r ReportRepository) Create(pair domain.PairKey, horoscope *float64) error {
	var count int64
	if err := r.db.Model(&Report{}).
		Where("user1_id = ? AND user2_id = ?", pair.Low, pair.High).
		Count(&count).Error; err != nil {
		return fmt.Errorf("checking report existence: %w", err)
	}
	if count > 0 {
		return apperrors.ErrReportExists
	}

	record := Report{
		User1ID:        pair.Low,
		User2ID:        pair.High,
		HoroscopeScore: horoscope,
	}
	err := r.db.Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost the race against a concurrent create
		return apperrors.ErrReportExists
	}
	return err
}

// UpdateAggregate records one accepted sentiment score: sum and count
// advance, the average is recomputed as sum/count rounded to 2 decimal
// places. Missing report yields errors.ErrReportNotFound.
func (r ReportRepository) UpdateAggregate(pair domain.PairKey, score float64) (domain.ReportAggregate, error) {
	var record Report
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user1_id = ? AND user2_id = ?", pair.Low, pair.High).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrReportNotFound
		}
		if err != nil {
			return fmt.Errorf("finding report: %w", err)
		}

		now := time.Now().UTC()
		record.SentimentSum += score
		record.SentimentCount++
		avg := round2(record.SentimentSum / float64(record.SentimentCount))
		record.SentimentAvg = &avg
		record.LastSentimentAt = &now
		return tx.Save(&record).Error
	})
	if err != nil {
		return domain.ReportAggregate{}, err
	}
	return toAggregate(record), nil
}

func toAggregate(record Report) domain.ReportAggregate {
	return domain.ReportAggregate{
		HoroscopeScore: record.HoroscopeScore,
		SentimentSum:   record.SentimentSum,
		SentimentCount: record.SentimentCount,
		SentimentAvg:   record.SentimentAvg,
		LastSentiment:  record.LastSentimentAt,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
