package publisher

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/maheshrc27/publish-engine/internal/cache"
	"github.com/maheshrc27/publish-engine/internal/transfer"
)

const DefaultTiktokURL = "https://open.tiktokapis.com"

// Tiktok posts a single video that TikTok pulls from its URL. The remote id
// is the publish id; the post itself appears once TikTok has processed it.
type Tiktok struct {
	cfg        Config
	api        *apiClient
	creators   cache.Cache
	creatorTTL time.Duration
}

func NewTiktok(cfg Config, creators cache.Cache, creatorTTL time.Duration) *Tiktok {
	cfg = cfg.withDefaults(DefaultTiktokURL)
	if creators == nil {
		creators = cache.NewMemory(1024, creatorTTL)
	}
	return &Tiktok{
		cfg:        cfg,
		api:        &apiClient{http: cfg.HTTPClient, decodeErr: decodeTiktokError},
		creators:   creators,
		creatorTTL: creatorTTL,
	}
}

func decodeTiktokError(status int, body []byte) *Error {
	var env struct {
		Error transfer.TiktokError `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Code == "" {
		return nil
	}
	e := statusError(status, env.Error.Code+": "+env.Error.Message)
	if env.Error.Code == "rate_limit_exceeded" {
		e.Kind = KindForStatus(429)
	}
	return e
}

func (p *Tiktok) Publish(ctx context.Context, req *Request) (*Result, error) {
	videos := req.videos()
	if len(videos) != 1 || len(req.Media) != 1 {
		return nil, permanent("tiktok requires exactly one video")
	}
	video := videos[0]
	steps := newStepRunner(p.cfg.Backoff)

	creator, err := p.creatorInfo(ctx, steps, req)
	if err != nil {
		return nil, err
	}
	if creator.MaxVideoPostDurationSec > 0 && video.DurationSec > float64(creator.MaxVideoPostDurationSec) {
		return nil, permanent("video is %ds, creator limit is %ds",
			int(math.Ceil(video.DurationSec)), creator.MaxVideoPostDurationSec)
	}

	body := transfer.TiktokInitRequest{
		PostInfo: transfer.TiktokVideoPostInfo{
			Title:          req.Content,
			PrivacyLevel:   privacyLevel(creator.PrivacyLevelOptions),
			DisableDuet:    creator.DuetDisabled,
			DisableComment: creator.CommentDisabled,
			DisableStitch:  creator.StitchDisabled,
		},
		SourceInfo: transfer.TiktokVideoSourceInfo{
			Source:   "PULL_FROM_URL",
			VideoURL: video.URL,
		},
	}
	call, err := jsonCall("POST", p.cfg.BaseURL+"/v2/post/publish/video/init/", body)
	if err != nil {
		return nil, permanent("%v", err)
	}
	call.bearer(req.AccessToken)

	var out transfer.TiktokInitResponse
	err = steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, call, &out)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out.Error.Code != "" && out.Error.Code != "ok" {
		return nil, permanent("tiktok init: %s: %s", out.Error.Code, out.Error.Message)
	}
	if out.Data.PublishID == "" {
		return nil, permanent("tiktok init returned no publish_id")
	}

	return &Result{RemotePostID: out.Data.PublishID, Retries: steps.retries}, nil
}

func (p *Tiktok) creatorInfo(ctx context.Context, steps *stepRunner, req *Request) (*transfer.TiktokCreatorInfo, error) {
	key := "tiktok:creator:" + req.AccountID

	// a cache failure falls through to the API
	var info transfer.TiktokCreatorInfo
	if err := cache.GetJSON(ctx, p.creators, key, &info); err == nil {
		return &info, nil
	}

	call := &apiCall{method: "POST", url: p.cfg.BaseURL + "/v2/post/publish/creator_info/query/", header: http.Header{},
		contentType: "application/json; charset=UTF-8"}
	call.bearer(req.AccessToken)

	var out transfer.TiktokCreatorInfoResponse
	err := steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, call, &out)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out.Error.Code != "" && out.Error.Code != "ok" {
		return nil, permanent("tiktok creator info: %s: %s", out.Error.Code, out.Error.Message)
	}

	_ = cache.SetJSON(ctx, p.creators, key, out.Data, p.creatorTTL)
	return &out.Data, nil
}

func privacyLevel(options []string) string {
	if len(options) == 0 || slices.Contains(options, "PUBLIC_TO_EVERYONE") {
		return "PUBLIC_TO_EVERYONE"
	}
	return options[0]
}
