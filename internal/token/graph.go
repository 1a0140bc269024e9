package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/transfer"
)

const (
	DefaultInstagramGraphURL = "https://graph.instagram.com"
	DefaultFacebookGraphURL  = "https://graph.facebook.com"

	// graphInvalidToken is the OAuthException code for a revoked or expired token.
	graphInvalidToken = 190
)

// InstagramStrategy extends a long-lived Instagram token with ig_refresh_token.
type InstagramStrategy struct {
	client  *http.Client
	baseURL string
}

func NewInstagramStrategy(client *http.Client, baseURL string) *InstagramStrategy {
	if baseURL == "" {
		baseURL = DefaultInstagramGraphURL
	}
	return &InstagramStrategy{client: client, baseURL: baseURL}
}

func (s *InstagramStrategy) Mode() Mode { return ModeExchange }

func (s *InstagramStrategy) Renew(ctx context.Context, _ *models.SocialAccount, accessToken, _ string) (*Renewed, error) {
	q := url.Values{}
	q.Set("grant_type", "ig_refresh_token")
	q.Set("access_token", accessToken)

	return fetchGraphToken(ctx, s.client, s.baseURL+"/refresh_access_token?"+q.Encode())
}

// FacebookStrategy trades the stored user token for a new long-lived one
// with fb_exchange_token.
type FacebookStrategy struct {
	client    *http.Client
	baseURL   string
	appID     string
	appSecret string
}

// NewFacebookStrategy takes the versioned Graph base, e.g.
// https://graph.facebook.com/v21.0.
func NewFacebookStrategy(client *http.Client, baseURL, appID, appSecret string) *FacebookStrategy {
	return &FacebookStrategy{client: client, baseURL: baseURL, appID: appID, appSecret: appSecret}
}

func (s *FacebookStrategy) Mode() Mode { return ModeExchange }

func (s *FacebookStrategy) Renew(ctx context.Context, _ *models.SocialAccount, accessToken, _ string) (*Renewed, error) {
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", s.appID)
	q.Set("client_secret", s.appSecret)
	q.Set("fb_exchange_token", accessToken)

	return fetchGraphToken(ctx, s.client, s.baseURL+"/oauth/access_token?"+q.Encode())
}

func fetchGraphToken(ctx context.Context, client *http.Client, endpoint string) (*Renewed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var graphErr transfer.GraphError
		if json.Unmarshal(body, &graphErr) == nil && graphErr.Error.Code == graphInvalidToken {
			return nil, fmt.Errorf("%w: %s", ErrInvalidGrant, graphErr.Error.Message)
		}
		return nil, fmt.Errorf("graph token request failed with status %d: %s", resp.StatusCode, body)
	}

	var tok transfer.GraphToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode graph token: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("graph token response without access_token")
	}

	return &Renewed{AccessToken: tok.AccessToken, ExpiresAt: expiresIn(time.Now(), tok.ExpiresIn)}, nil
}
