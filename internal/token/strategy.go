package token

import (
	"context"
	"time"

	"github.com/maheshrc27/publish-engine/internal/models"
)

// Mode is how a platform renews its access tokens.
type Mode int

const (
	// ModeNone tokens cannot be renewed without the user.
	ModeNone Mode = iota
	// ModeExchange trades the current, still valid access token for a fresh one.
	ModeExchange
	// ModeRefreshToken redeems a separate refresh token.
	ModeRefreshToken
)

func (m Mode) String() string {
	switch m {
	case ModeExchange:
		return "exchange"
	case ModeRefreshToken:
		return "refresh_token"
	}
	return "none"
}

// Renewed is a plaintext token pair handed back by a Strategy. An empty
// RefreshToken means the platform did not rotate it. A nil ExpiresAt means
// the token does not expire.
type Renewed struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// Strategy renews credentials for one platform. Implementations receive
// plaintext tokens and must not persist anything.
type Strategy interface {
	Mode() Mode
	Renew(ctx context.Context, account *models.SocialAccount, accessToken, refreshToken string) (*Renewed, error)
}

// Notifier is told when an account needs its owner to reconnect it.
type Notifier interface {
	ReauthRequired(ctx context.Context, account *models.SocialAccount, reason string)
}

type NoopNotifier struct{}

func (NoopNotifier) ReauthRequired(context.Context, *models.SocialAccount, string) {}

func expiresIn(now time.Time, seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	t := now.Add(time.Duration(seconds) * time.Second)
	return &t
}
