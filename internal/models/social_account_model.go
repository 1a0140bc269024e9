package models

import (
	"time"
)

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTiktok    Platform = "tiktok"
	PlatformYoutube   Platform = "youtube"
	PlatformLinkedin  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
)

// SocialAccount binds a workspace to one external platform identity.
// AccessToken and RefreshToken hold the encrypted values as stored.
type SocialAccount struct {
	ID             int64      `db:"id" json:"id"`
	WorkspaceID    int64      `db:"workspace_id" json:"workspace_id"`
	Platform       Platform   `db:"platform" json:"platform"`
	AccountID      string     `db:"account_id" json:"account_id"`
	AccountName    string     `db:"account_name" json:"account_name"`
	AccessToken    string     `db:"access_token" json:"-"`
	RefreshToken   string     `db:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at"`
	Active         bool       `db:"active" json:"active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
