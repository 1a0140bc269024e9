package publisher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/transfer"
)

const DefaultInstagramURL = "https://graph.instagram.com/v21.0"

// Instagram publishes through media containers: create one container per
// item, wait for video processing, then media_publish.
type Instagram struct {
	cfg Config
	api *apiClient
}

func NewInstagram(cfg Config) *Instagram {
	cfg = cfg.withDefaults(DefaultInstagramURL)
	return &Instagram{cfg: cfg, api: &apiClient{http: cfg.HTTPClient, decodeErr: decodeGraphError}}
}

func (p *Instagram) Publish(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Media) == 0 {
		return nil, permanent("instagram requires at least one media item")
	}
	steps := newStepRunner(p.cfg.Backoff)

	var containerID string
	var err error
	if len(req.Media) > 1 && req.Format == models.FormatPost {
		containerID, err = p.carousel(ctx, steps, req)
	} else {
		containerID, err = p.container(ctx, steps, req, p.containerParams(req, req.Media[0]))
		if err == nil && req.Media[0].Type == models.MediaTypeVideo {
			err = p.waitReady(ctx, steps, req.AccessToken, containerID)
		}
	}
	if err != nil {
		return nil, err
	}

	var published transfer.GraphID
	err = steps.run(ctx, func(ctx context.Context) error {
		form := url.Values{}
		form.Set("creation_id", containerID)
		form.Set("access_token", req.AccessToken)
		_, err := p.api.do(ctx, formCall("POST", p.endpoint(req.AccountID, "media_publish"), form), &published)
		return err
	})
	if err != nil {
		return nil, err
	}
	if published.ID == "" {
		return nil, permanent("instagram media_publish returned no id")
	}

	return &Result{
		RemotePostID: published.ID,
		Permalink:    p.permalink(ctx, req.AccessToken, published.ID),
		Retries:      steps.retries,
	}, nil
}

func (p *Instagram) containerParams(req *Request, m models.Media) url.Values {
	form := url.Values{}
	mediaKey := "image_url"
	if m.Type == models.MediaTypeVideo {
		mediaKey = "video_url"
	}
	form.Set(mediaKey, m.URL)

	switch req.Format {
	case models.FormatStory:
		form.Set("media_type", "STORIES")
	case models.FormatReel:
		form.Set("media_type", "REELS")
		form.Set("caption", req.Content)
	default:
		// feed videos are published as reels shared to the feed
		if m.Type == models.MediaTypeVideo {
			form.Set("media_type", "REELS")
			form.Set("share_to_feed", "true")
		}
		form.Set("caption", req.Content)
	}
	return form
}

func (p *Instagram) carousel(ctx context.Context, steps *stepRunner, req *Request) (string, error) {
	children := make([]string, 0, len(req.Media))
	for _, m := range req.Media {
		form := url.Values{}
		form.Set("is_carousel_item", "true")
		if m.Type == models.MediaTypeVideo {
			form.Set("media_type", "VIDEO")
			form.Set("video_url", m.URL)
		} else {
			form.Set("image_url", m.URL)
		}
		id, err := p.container(ctx, steps, req, form)
		if err != nil {
			return "", err
		}
		if m.Type == models.MediaTypeVideo {
			if err := p.waitReady(ctx, steps, req.AccessToken, id); err != nil {
				return "", err
			}
		}
		children = append(children, id)
	}

	form := url.Values{}
	form.Set("media_type", "CAROUSEL")
	form.Set("caption", req.Content)
	form.Set("children", strings.Join(children, ","))
	return p.container(ctx, steps, req, form)
}

func (p *Instagram) container(ctx context.Context, steps *stepRunner, req *Request, form url.Values) (string, error) {
	form.Set("access_token", req.AccessToken)

	var created transfer.GraphID
	err := steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, formCall("POST", p.endpoint(req.AccountID, "media"), form), &created)
		return err
	})
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", permanent("instagram returned no container id")
	}
	return created.ID, nil
}

// waitReady polls a video container until processing finishes.
func (p *Instagram) waitReady(ctx context.Context, steps *stepRunner, token, containerID string) error {
	deadline := time.Now().Add(p.cfg.PollTimeout)
	q := url.Values{}
	q.Set("fields", "status_code,status")
	q.Set("access_token", token)

	for {
		var status transfer.ContainerStatus
		err := steps.run(ctx, func(ctx context.Context) error {
			_, err := p.api.do(ctx, getCall(p.cfg.BaseURL+"/"+containerID+"?"+q.Encode()), &status)
			return err
		})
		if err != nil {
			return err
		}

		switch status.StatusCode {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			return permanent("instagram container %s: %s %s", containerID, status.StatusCode, status.Status)
		}

		if time.Now().After(deadline) {
			return transient("instagram container %s still %s after %s", containerID, status.StatusCode, p.cfg.PollTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// permalink is best effort; the post already exists when it is called.
func (p *Instagram) permalink(ctx context.Context, token, mediaID string) string {
	ctx, cancel, ok := lookupContext(ctx)
	if !ok {
		return ""
	}
	defer cancel()

	q := url.Values{}
	q.Set("fields", "permalink")
	q.Set("access_token", token)

	var out transfer.GraphPermalink
	if _, err := p.api.do(ctx, getCall(p.cfg.BaseURL+"/"+mediaID+"?"+q.Encode()), &out); err != nil {
		return ""
	}
	return out.Permalink
}

func (p *Instagram) endpoint(accountID, edge string) string {
	return fmt.Sprintf("%s/%s/%s", p.cfg.BaseURL, accountID, edge)
}
