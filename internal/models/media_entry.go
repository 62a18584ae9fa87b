package models

import "time"

// MediaEntry is a user's tracking record for one item: status, progress,
// score and repeat count. Season entries point at their show's entry via
// RelatedTVID so the episode cascade can walk upward.
type MediaEntry struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;uniqueIndex:idx_media_entries_owner" json:"user_id"`
	ItemID      uint       `gorm:"not null;uniqueIndex:idx_media_entries_owner" json:"item_id"`
	Status      Status     `gorm:"type:varchar(20);not null;default:In progress" json:"status"`
	Score       *float64   `json:"score,omitempty"`
	Progress    int        `gorm:"not null;default:0" json:"progress"`
	Repeats     int        `gorm:"not null;default:0" json:"repeats"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`

	// LastPlayedAt keeps the seconds-precision time of the last applied
	// played event; StartDate and EndDate are truncated to the minute
	LastPlayedAt *time.Time `json:"-"`

	Notes       string    `gorm:"type:text" json:"notes"`
	RelatedTVID *uint     `gorm:"index" json:"related_tv_id,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	User      *User       `gorm:"foreignKey:UserID;constraint:OnDelete=CASCADE" json:"user,omitempty"`
	Item      *Item       `gorm:"foreignKey:ItemID;constraint:OnDelete=CASCADE" json:"item,omitempty"`
	RelatedTV *MediaEntry `gorm:"foreignKey:RelatedTVID;constraint:OnDelete=SET NULL" json:"related_tv,omitempty"`
}

// TableName specifies the table name for MediaEntry
func (MediaEntry) TableName() string {
	return "media_entries"
}

// EpisodeWatch records a single watched episode under a season entry.
// Ownership flows through the season entry, so there is no direct user FK.
type EpisodeWatch struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	SeasonEntryID uint       `gorm:"not null;index" json:"season_entry_id"`
	ItemID        uint       `gorm:"not null;index" json:"item_id"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	Repeats       int        `gorm:"not null;default:0" json:"repeats"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`

	// Associations
	SeasonEntry *MediaEntry `gorm:"foreignKey:SeasonEntryID;constraint:OnDelete=CASCADE" json:"season_entry,omitempty"`
	Item        *Item       `gorm:"foreignKey:ItemID;constraint:OnDelete=CASCADE" json:"item,omitempty"`
}

// TableName specifies the table name for EpisodeWatch
func (EpisodeWatch) TableName() string {
	return "episode_watches"
}

// EntryHistory is an audit trail row for a media entry. Imports with
// repeat counts backfill one Completed row per past watch-through so
// the trail stays consistent with the final state.
type EntryHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EntryID    uint      `gorm:"not null;index" json:"entry_id"`
	Status     Status    `gorm:"type:varchar(20);not null" json:"status"`
	Progress   int       `gorm:"not null;default:0" json:"progress"`
	Repeats    int       `gorm:"not null;default:0" json:"repeats"`
	RecordedAt time.Time `gorm:"not null;index" json:"recorded_at"`

	// Associations
	Entry *MediaEntry `gorm:"foreignKey:EntryID;constraint:OnDelete=CASCADE" json:"entry,omitempty"`
}

// TableName specifies the table name for EntryHistory
func (EntryHistory) TableName() string {
	return "entry_history"
}
