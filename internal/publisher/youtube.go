package publisher

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/maheshrc27/publish-engine/internal/media"
	"github.com/maheshrc27/publish-engine/internal/models"
)

const maxYoutubeTitle = 100

// Youtube uploads the video bytes through the Data API. Unlike the other
// platforms YouTube cannot pull media from a URL.
type Youtube struct {
	cfg    Config
	source media.Source
}

// NewYoutube uses cfg.BaseURL as the API endpoint override; empty means the
// production endpoint.
func NewYoutube(cfg Config, source media.Source) *Youtube {
	cfg = cfg.withDefaults("")
	return &Youtube{cfg: cfg, source: source}
}

func (p *Youtube) Publish(ctx context.Context, req *Request) (*Result, error) {
	videos := req.videos()
	if len(videos) != 1 || len(req.Media) != 1 {
		return nil, permanent("youtube requires exactly one video")
	}
	steps := newStepRunner(p.cfg.Backoff)

	obj, err := fetch(ctx, steps, p.source, videos[0].URL)
	if err != nil {
		return nil, err
	}

	svc, err := p.service(ctx, req.AccessToken)
	if err != nil {
		return nil, permanent("youtube client: %v", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       youtubeTitle(req),
			Description: req.Content,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           "public",
			SelfDeclaredMadeForKids: false,
		},
	}

	var uploaded *youtube.Video
	err = steps.run(ctx, func(ctx context.Context) error {
		var mediaOpts []googleapi.MediaOption
		if obj.ContentType != "" {
			mediaOpts = append(mediaOpts, googleapi.ContentType(obj.ContentType))
		}
		call := svc.Videos.Insert([]string{"snippet", "status"}, video).
			Media(bytes.NewReader(obj.Data), mediaOpts...).
			Context(ctx)
		var err error
		uploaded, err = call.Do()
		return classifyGoogleError(ctx, err)
	})
	if err != nil {
		return nil, err
	}

	permalink := "https://www.youtube.com/watch?v=" + uploaded.Id
	if req.Format == models.FormatShort {
		permalink = "https://www.youtube.com/shorts/" + uploaded.Id
	}
	return &Result{RemotePostID: uploaded.Id, Permalink: permalink, Retries: steps.retries}, nil
}

func (p *Youtube) service(ctx context.Context, accessToken string) (*youtube.Service, error) {
	baseCtx := context.WithValue(ctx, oauth2.HTTPClient, p.cfg.HTTPClient)
	client := oauth2.NewClient(baseCtx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(p.cfg.BaseURL))
	}
	return youtube.NewService(ctx, opts...)
}

func classifyGoogleError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &Error{Kind: KindForStatus(gerr.Code), StatusCode: gerr.Code, Message: gerr.Message, Err: err}
	}
	return networkError(ctx, err)
}

func youtubeTitle(req *Request) string {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSpace(strings.SplitN(req.Content, "\n", 2)[0])
	}
	if title == "" {
		title = "Untitled"
	}
	return truncate(title, maxYoutubeTitle)
}
