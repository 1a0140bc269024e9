package models

import "time"

type AttemptStatus string

const (
	AttemptStatusPending    AttemptStatus = "pending"
	AttemptStatusPublishing AttemptStatus = "publishing"
	AttemptStatusSucceeded  AttemptStatus = "succeeded"
	AttemptStatusFailed     AttemptStatus = "failed"
)

func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusSucceeded || s == AttemptStatusFailed
}

type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindValidation     ErrorKind = "validation"
	ErrorKindCredential     ErrorKind = "credential"
	ErrorKindReauthRequired ErrorKind = "reauth_required"
	ErrorKindTransient      ErrorKind = "transient"
	ErrorKindPermanent      ErrorKind = "permanent"
	ErrorKindTimeout        ErrorKind = "timeout"
)

// Retryable separates failures a plain republish may fix from those where
// the content itself has to change.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindCredential, ErrorKindReauthRequired, ErrorKindTransient, ErrorKindTimeout:
		return true
	}
	return false
}

// PublishAttempt is one account's delivery result within one publish cycle.
type PublishAttempt struct {
	ID           int64         `db:"id" json:"id"`
	PostID       int64         `db:"post_id" json:"post_id"`
	CycleID      string        `db:"cycle_id" json:"cycle_id"`
	AccountID    int64         `db:"account_id" json:"account_id"`
	Platform     Platform      `db:"platform" json:"platform"`
	Status       AttemptStatus `db:"status" json:"status"`
	RemotePostID string        `db:"remote_post_id" json:"remote_post_id"`
	Permalink    string        `db:"permalink" json:"permalink"`
	ErrorKind    ErrorKind     `db:"error_kind" json:"error_kind"`
	ErrorMessage string        `db:"error_message" json:"error_message"`
	Retries      int           `db:"retries" json:"retries"`
	AttemptedAt  time.Time     `db:"attempted_at" json:"attempted_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}
