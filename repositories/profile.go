package repositories

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"matchroom/domain"
	apperrors "matchroom/errors"
)

// ProfileRepository resolves the user attributes the horoscope prompt
// needs.
type ProfileRepository struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewProfileRepository(db *gorm.DB, log *slog.Logger) ProfileRepository {
	return ProfileRepository{db: db, log: log}
}

func (r ProfileRepository) FindByID(id int64) (domain.Profile, error) {
	var record Profile
	err := r.db.First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Profile{}, apperrors.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("finding profile %d: %w", id, err)
	}
	return domain.Profile{
		ID:           record.ID,
		UserName:     record.UserName,
		Dob:          record.Dob,
		PlaceOfBirth: record.PlaceOfBirth,
		PhotoURL:     record.PhotoURL,
	}, nil
}
