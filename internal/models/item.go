package models

import "time"

// Item is a single piece of media as known to a provider. Seasons and
// episodes are distinct items sharing the parent show's MediaID, told
// apart by SeasonNumber and EpisodeNumber.
type Item struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	MediaID       string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_items_identity" json:"media_id"`
	Source        Source    `gorm:"type:varchar(20);not null;uniqueIndex:idx_items_identity" json:"source"`
	MediaType     MediaType `gorm:"type:varchar(20);not null;uniqueIndex:idx_items_identity" json:"media_type"`
	SeasonNumber  *int      `gorm:"uniqueIndex:idx_items_identity" json:"season_number,omitempty"`
	EpisodeNumber *int      `gorm:"uniqueIndex:idx_items_identity" json:"episode_number,omitempty"`
	Title         string    `gorm:"type:varchar(255);not null" json:"title"`
	Image         string    `gorm:"type:text;not null" json:"image"`

	// YouTubeVideoID links a manually tracked episode to the video its
	// media file was ripped from, so webhooks can match it by file name
	YouTubeVideoID *string `gorm:"column:youtube_video_id;index" json:"youtube_video_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for Item
func (Item) TableName() string {
	return "items"
}
