package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/transfer"
)

const DefaultTiktokTokenURL = "https://open.tiktokapis.com/v2/oauth/token/"

type TiktokStrategy struct {
	client       *http.Client
	tokenURL     string
	clientKey    string
	clientSecret string
}

func NewTiktokStrategy(client *http.Client, tokenURL, clientKey, clientSecret string) *TiktokStrategy {
	if tokenURL == "" {
		tokenURL = DefaultTiktokTokenURL
	}
	return &TiktokStrategy{client: client, tokenURL: tokenURL, clientKey: clientKey, clientSecret: clientSecret}
}

func (s *TiktokStrategy) Mode() Mode { return ModeRefreshToken }

func (s *TiktokStrategy) Renew(ctx context.Context, _ *models.SocialAccount, _, refreshToken string) (*Renewed, error) {
	data := url.Values{}
	data.Set("client_key", s.clientKey)
	data.Set("client_secret", s.clientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tiktok token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var tok transfer.TiktokTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("tiktok token response (status %d): %w", resp.StatusCode, err)
	}
	if tok.Error == "invalid_grant" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGrant, tok.ErrorDescription)
	}
	if resp.StatusCode != http.StatusOK || tok.Error != "" || tok.AccessToken == "" {
		return nil, fmt.Errorf("tiktok token request failed with status %d: %s %s", resp.StatusCode, tok.Error, tok.ErrorDescription)
	}

	renewed := &Renewed{AccessToken: tok.AccessToken, ExpiresAt: expiresIn(time.Now(), tok.ExpiresIn)}
	if tok.RefreshToken != refreshToken {
		renewed.RefreshToken = tok.RefreshToken
	}
	return renewed, nil
}
