package transfer

import (
	"time"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/validation"
)

// SubmitPostRequest is the body of POST /api/posts and /api/posts/validate.
type SubmitPostRequest struct {
	Content       string         `json:"content"`
	Title         string         `json:"title"`
	Format        models.Format  `json:"format"`
	Media         []models.Media `json:"media"`
	TargetIDs     []int64        `json:"target_ids"`
	ScheduledTime *time.Time     `json:"scheduled_time"`
	Draft         bool           `json:"draft"`
}

type TargetValidation struct {
	TargetID int64                  `json:"targetId"`
	Platform models.Platform        `json:"platform"`
	Valid    bool                   `json:"valid"`
	Errors   []validation.Violation `json:"errors"`
	Warnings []validation.Violation `json:"warnings"`
}

type SubmitPostResponse struct {
	PostID     int64              `json:"postId,omitempty"`
	Status     models.PostStatus  `json:"status,omitempty"`
	Validation []TargetValidation `json:"validation"`
}
