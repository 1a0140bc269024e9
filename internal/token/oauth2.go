package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/maheshrc27/publish-engine/internal/models"
)

var TwitterEndpoint = oauth2.Endpoint{
	AuthURL:   "https://twitter.com/i/oauth2/authorize",
	TokenURL:  "https://api.x.com/2/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// OAuth2Strategy redeems a standard OAuth 2.0 refresh token.
type OAuth2Strategy struct {
	conf   *oauth2.Config
	client *http.Client
}

func NewOAuth2Strategy(conf *oauth2.Config, client *http.Client) *OAuth2Strategy {
	return &OAuth2Strategy{conf: conf, client: client}
}

func NewYoutubeStrategy(clientID, clientSecret string, client *http.Client) *OAuth2Strategy {
	return NewOAuth2Strategy(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint:     google.Endpoint,
	}, client)
}

func NewTwitterStrategy(clientID, clientSecret string, client *http.Client) *OAuth2Strategy {
	return NewOAuth2Strategy(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{"tweet.read", "tweet.write", "users.read", "media.write", "offline.access"},
		Endpoint:     TwitterEndpoint,
	}, client)
}

func (s *OAuth2Strategy) Mode() Mode { return ModeRefreshToken }

func (s *OAuth2Strategy) Renew(ctx context.Context, _ *models.SocialAccount, _, refreshToken string) (*Renewed, error) {
	if s.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	}

	tok, err := s.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidGrant, re.ErrorDescription)
		}
		return nil, err
	}

	renewed := &Renewed{AccessToken: tok.AccessToken}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		renewed.ExpiresAt = &exp
	}
	if tok.RefreshToken != refreshToken {
		renewed.RefreshToken = tok.RefreshToken
	}
	return renewed, nil
}

// NoRefreshStrategy is for platforms whose tokens simply run out, LinkedIn
// for one.
type NoRefreshStrategy struct{}

func (NoRefreshStrategy) Mode() Mode { return ModeNone }

func (NoRefreshStrategy) Renew(context.Context, *models.SocialAccount, string, string) (*Renewed, error) {
	return nil, ErrNotRefreshable
}
