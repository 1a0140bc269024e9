package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/maheshrc27/publish-engine/internal/cache"
	"github.com/maheshrc27/publish-engine/internal/transfer"
)

const DefaultFacebookURL = "https://graph.facebook.com/v21.0"

// Facebook publishes to a Page. The stored credential is the user token;
// every call is made with the page token derived from it.
type Facebook struct {
	cfg          Config
	api          *apiClient
	pageTokens   cache.Cache
	pageTokenTTL time.Duration
}

func NewFacebook(cfg Config, pageTokens cache.Cache, pageTokenTTL time.Duration) *Facebook {
	cfg = cfg.withDefaults(DefaultFacebookURL)
	if pageTokens == nil {
		pageTokens = cache.NewMemory(1024, pageTokenTTL)
	}
	return &Facebook{
		cfg:          cfg,
		api:          &apiClient{http: cfg.HTTPClient, decodeErr: decodeGraphError},
		pageTokens:   pageTokens,
		pageTokenTTL: pageTokenTTL,
	}
}

func (p *Facebook) Publish(ctx context.Context, req *Request) (*Result, error) {
	steps := newStepRunner(p.cfg.Backoff)

	pageToken, err := p.pageToken(ctx, steps, req)
	if err != nil {
		return nil, err
	}

	var postID string
	switch {
	case len(req.Media) == 0:
		form := url.Values{}
		form.Set("message", req.Content)
		postID, err = p.post(ctx, steps, pageToken, p.endpoint(req.AccountID, "feed"), form)

	case req.hasVideo():
		v := req.videos()[0]
		form := url.Values{}
		form.Set("file_url", v.URL)
		form.Set("description", req.Content)
		if req.Title != "" {
			form.Set("title", req.Title)
		}
		postID, err = p.post(ctx, steps, pageToken, p.endpoint(req.AccountID, "videos"), form)

	case len(req.Media) == 1:
		form := url.Values{}
		form.Set("url", req.Media[0].URL)
		form.Set("caption", req.Content)
		postID, err = p.post(ctx, steps, pageToken, p.endpoint(req.AccountID, "photos"), form)

	default:
		postID, err = p.multiPhoto(ctx, steps, pageToken, req)
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		RemotePostID: postID,
		Permalink:    p.permalink(ctx, pageToken, postID),
		Retries:      steps.retries,
	}, nil
}

// multiPhoto uploads each image unpublished, then attaches them all to one
// feed post.
func (p *Facebook) multiPhoto(ctx context.Context, steps *stepRunner, pageToken string, req *Request) (string, error) {
	form := url.Values{}
	form.Set("message", req.Content)
	for i, m := range req.Media {
		photo := url.Values{}
		photo.Set("url", m.URL)
		photo.Set("published", "false")
		id, err := p.post(ctx, steps, pageToken, p.endpoint(req.AccountID, "photos"), photo)
		if err != nil {
			return "", err
		}
		form.Set(fmt.Sprintf("attached_media[%d]", i), fmt.Sprintf(`{"media_fbid":"%s"}`, id))
	}
	return p.post(ctx, steps, pageToken, p.endpoint(req.AccountID, "feed"), form)
}

func (p *Facebook) post(ctx context.Context, steps *stepRunner, pageToken, endpoint string, form url.Values) (string, error) {
	form.Set("access_token", pageToken)

	var created transfer.GraphID
	err := steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, formCall("POST", endpoint, form), &created)
		return err
	})
	if err != nil {
		return "", err
	}
	if created.PostID != "" {
		return created.PostID, nil
	}
	if created.ID == "" {
		return "", permanent("facebook returned no id")
	}
	return created.ID, nil
}

func (p *Facebook) pageToken(ctx context.Context, steps *stepRunner, req *Request) (string, error) {
	key := "fb:page:" + req.AccountID
	if token, err := p.pageTokens.Get(ctx, key); err == nil {
		return string(token), nil
	} else if !errors.Is(err, cache.ErrMiss) {
		return "", transient("page token cache: %v", err)
	}

	q := url.Values{}
	q.Set("fields", "access_token")
	q.Set("access_token", req.AccessToken)

	var page transfer.PageAccount
	err := steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, getCall(p.cfg.BaseURL+"/"+req.AccountID+"?"+q.Encode()), &page)
		return err
	})
	if err != nil {
		return "", err
	}
	if page.AccessToken == "" {
		return "", permanent("no page access token for page %s; check the granted permissions", req.AccountID)
	}

	_ = p.pageTokens.Set(ctx, key, []byte(page.AccessToken), p.pageTokenTTL)
	return page.AccessToken, nil
}

// permalink is best effort; the post already exists when it is called.
func (p *Facebook) permalink(ctx context.Context, token, postID string) string {
	ctx, cancel, ok := lookupContext(ctx)
	if !ok {
		return ""
	}
	defer cancel()

	q := url.Values{}
	q.Set("fields", "permalink_url")
	q.Set("access_token", token)

	var out transfer.GraphPermalink
	if _, err := p.api.do(ctx, getCall(p.cfg.BaseURL+"/"+postID+"?"+q.Encode()), &out); err != nil {
		return ""
	}
	return out.PermalinkURL
}

func (p *Facebook) endpoint(pageID, edge string) string {
	return fmt.Sprintf("%s/%s/%s", p.cfg.BaseURL, pageID, edge)
}
