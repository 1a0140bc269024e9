package models

import "time"

type PostStatus string

const (
	PostStatusDraft              PostStatus = "draft"
	PostStatusScheduled          PostStatus = "scheduled"
	PostStatusPublishing         PostStatus = "publishing"
	PostStatusPublished          PostStatus = "published"
	PostStatusPartiallyPublished PostStatus = "partially_published"
	PostStatusFailed             PostStatus = "failed"
)

// Format is the content sub-type a post is published as.
type Format string

const (
	FormatPost  Format = "post"
	FormatReel  Format = "reel"
	FormatStory Format = "story"
	FormatShort Format = "short"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

type Media struct {
	URL         string    `json:"url"`
	Type        MediaType `json:"type"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	DurationSec float64   `json:"duration_sec,omitempty"`
}

// AspectRatio returns width/height, or 0 when the dimensions are unknown.
func (m Media) AspectRatio() float64 {
	if m.Width <= 0 || m.Height <= 0 {
		return 0
	}
	return float64(m.Width) / float64(m.Height)
}

type Post struct {
	ID            int64      `db:"id" json:"id"`
	WorkspaceID   int64      `db:"workspace_id" json:"workspace_id"`
	Content       string     `db:"content" json:"content"`
	Title         string     `db:"title" json:"title"`
	Format        Format     `db:"format" json:"format"`
	Media         []Media    `db:"media" json:"media"`
	TargetIDs     []int64    `db:"target_ids" json:"target_ids"`
	ScheduledTime *time.Time `db:"scheduled_time" json:"scheduled_time"`
	Status        PostStatus `db:"status" json:"status"`
	CycleID       string     `db:"cycle_id" json:"cycle_id"`
	PublishedAt   *time.Time `db:"published_at" json:"published_at"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// IsDue reports whether a scheduled post should be picked up at now.
func (p *Post) IsDue(now time.Time) bool {
	if p.Status != PostStatusScheduled {
		return false
	}
	return p.ScheduledTime == nil || !p.ScheduledTime.After(now)
}
