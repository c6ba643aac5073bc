package domain

import "time"

// TokenExpiryBuffer is the lookahead applied when checking token expiry so a
// refresh happens before the access token actually lapses.
const TokenExpiryBuffer = 300 * time.Second

// StravaToken is the single-row Strava OAuth2 credential record. The row id is
// always 1; there is one user and one token set.
type StravaToken struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AccessToken  string    `gorm:"type:text;not null" json:"-"`
	RefreshToken string    `gorm:"type:text;not null" json:"-"`
	ExpiresAt    int64     `gorm:"not null" json:"expires_at"`
	AthleteID    *int64    `json:"athlete_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for StravaToken.
func (StravaToken) TableName() string {
	return "strava_tokens"
}

// IsExpired reports whether the token is expired or will expire within the
// given buffer. A zero buffer still uses TokenExpiryBuffer.
func (t *StravaToken) IsExpired(buffer time.Duration) bool {
	if buffer <= 0 {
		buffer = TokenExpiryBuffer
	}
	return t.ExpiresAt < time.Now().Add(buffer).Unix()
}
