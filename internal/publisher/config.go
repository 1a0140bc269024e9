package publisher

import (
	"net/http"
	"time"
)

// Config is shared by every platform publisher. Zero values fall back to
// production endpoints and defaults.
type Config struct {
	HTTPClient   *http.Client
	BaseURL      string
	Backoff      time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func (c Config) withDefaults(baseURL string) Config {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Backoff == 0 {
		c.Backoff = DefaultBackoff
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = 5 * time.Minute
	}
	return c
}
