package repository

import (
	"context"
	"errors"
	"time"

	"github.com/garava/garava/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository handles the single-row Strava OAuth token.
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get retrieves the stored Strava token. Returns (nil, nil) when no token has
// been saved yet.
func (r *TokenRepository) Get(ctx context.Context) (*domain.StravaToken, error) {
	var token domain.StravaToken
	err := r.db.WithContext(ctx).First(&token, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Save creates or overwrites the singleton token row.
func (r *TokenRepository) Save(ctx context.Context, token *domain.StravaToken) error {
	token.ID = 1
	token.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(token).Error
}
