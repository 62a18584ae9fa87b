package models

import (
	"strings"
	"time"
)

// User is an account that owns tracking records. Webhook payloads are
// matched to users by Username (Plex account title, Jellyfin/Emby user).
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"type:varchar(150);not null;uniqueIndex" json:"username"`
	Token    string `gorm:"type:varchar(64);not null;index" json:"-"`

	// AnimeEnabled routes recognized anime episodes and movies to MAL
	// tracking instead of generic TMDB tracking
	AnimeEnabled bool `gorm:"not null;default:false" json:"anime_enabled"`

	// PlexUsernames is a comma-separated list of Plex account titles
	// whose playback belongs to this user
	PlexUsernames string `gorm:"type:varchar(255)" json:"plex_usernames"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// MatchesPlexAccount reports whether a Plex account title belongs to
// this user, comparing case-insensitively
func (u *User) MatchesPlexAccount(accountTitle string) bool {
	want := strings.ToLower(strings.TrimSpace(accountTitle))
	if want == "" {
		return false
	}
	for _, name := range strings.Split(u.PlexUsernames, ",") {
		if strings.ToLower(strings.TrimSpace(name)) == want {
			return true
		}
	}
	return false
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// ExternalIDMapping is an admin-maintained override linking one provider's
// ID to another's. Resolution consults it before the community anime-IDs
// table.
type ExternalIDMapping struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FromSource Source    `gorm:"type:varchar(20);not null;uniqueIndex:idx_external_id_mappings_from" json:"from_source"`
	FromID     string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_external_id_mappings_from" json:"from_id"`
	ToSource   Source    `gorm:"type:varchar(20);not null" json:"to_source"`
	ToID       string    `gorm:"type:varchar(64);not null" json:"to_id"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for ExternalIDMapping
func (ExternalIDMapping) TableName() string {
	return "external_id_mappings"
}
