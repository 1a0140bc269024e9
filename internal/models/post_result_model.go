package models

import "time"

type TargetOutcome struct {
	TargetID     int64         `json:"targetId"`
	Platform     Platform      `json:"platform"`
	Status       AttemptStatus `json:"status"`
	RemotePostID string        `json:"remotePostId,omitempty"`
	Permalink    string        `json:"permalink,omitempty"`
	ErrorKind    ErrorKind     `json:"errorKind,omitempty"`
	Error        string        `json:"error,omitempty"`
	Retryable    bool          `json:"retryable"`
	Retries      int           `json:"retries"`
}

// PostResult is the aggregate outcome of one publish cycle.
type PostResult struct {
	PostID      int64           `json:"postId"`
	CycleID     string          `json:"cycleId"`
	Status      PostStatus      `json:"status"`
	PublishedAt time.Time       `json:"publishedAt"`
	PerTarget   []TargetOutcome `json:"perTarget"`
}

// Aggregate is the only place the three-way post status is derived.
// No outcomes at all counts as failed.
func Aggregate(outcomes []TargetOutcome) PostStatus {
	succeeded, failed := 0, 0
	for _, o := range outcomes {
		switch o.Status {
		case AttemptStatusSucceeded:
			succeeded++
		default:
			failed++
		}
	}
	switch {
	case succeeded > 0 && failed == 0:
		return PostStatusPublished
	case succeeded > 0:
		return PostStatusPartiallyPublished
	default:
		return PostStatusFailed
	}
}

// OutcomeFromAttempt maps a stored attempt to its outward shape.
func OutcomeFromAttempt(a *PublishAttempt) TargetOutcome {
	return TargetOutcome{
		TargetID:     a.AccountID,
		Platform:     a.Platform,
		Status:       a.Status,
		RemotePostID: a.RemotePostID,
		Permalink:    a.Permalink,
		ErrorKind:    a.ErrorKind,
		Error:        a.ErrorMessage,
		Retryable:    a.ErrorKind.Retryable(),
		Retries:      a.Retries,
	}
}
