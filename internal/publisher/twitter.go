package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/maheshrc27/publish-engine/internal/media"
	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/transfer"
)

const (
	DefaultTwitterURL = "https://api.x.com"

	twitterChunkSize = 4 << 20
)

// Twitter uploads media to X first, then creates the tweet referencing the
// media ids. Videos go through the chunked INIT/APPEND/FINALIZE flow.
type Twitter struct {
	cfg    Config
	api    *apiClient
	source media.Source
}

func NewTwitter(cfg Config, source media.Source) *Twitter {
	cfg = cfg.withDefaults(DefaultTwitterURL)
	return &Twitter{cfg: cfg, api: &apiClient{http: cfg.HTTPClient, decodeErr: decodeTwitterError}, source: source}
}

func decodeTwitterError(status int, body []byte) *Error {
	var te transfer.TwitterError
	if err := json.Unmarshal(body, &te); err != nil || (te.Detail == "" && te.Title == "") {
		return nil
	}
	msg := te.Detail
	if msg == "" {
		msg = te.Title
	}
	return statusError(status, msg)
}

func (p *Twitter) Publish(ctx context.Context, req *Request) (*Result, error) {
	steps := newStepRunner(p.cfg.Backoff)

	var mediaIDs []string
	for _, m := range req.Media {
		id, err := p.upload(ctx, steps, req.AccessToken, m)
		if err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, id)
	}

	tweet := transfer.TweetRequest{Text: req.Content}
	if len(mediaIDs) > 0 {
		tweet.Media = &transfer.TweetMedia{MediaIDs: mediaIDs}
	}
	call, err := jsonCall(http.MethodPost, p.cfg.BaseURL+"/2/tweets", tweet)
	if err != nil {
		return nil, permanent("%v", err)
	}
	call.bearer(req.AccessToken)

	var out transfer.TweetResponse
	err = steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, call, &out)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out.Data.ID == "" {
		return nil, permanent("x returned no tweet id")
	}

	return &Result{
		RemotePostID: out.Data.ID,
		Permalink:    "https://x.com/i/web/status/" + out.Data.ID,
		Retries:      steps.retries,
	}, nil
}

func (p *Twitter) upload(ctx context.Context, steps *stepRunner, token string, m models.Media) (string, error) {
	obj, err := fetch(ctx, steps, p.source, m.URL)
	if err != nil {
		return "", err
	}
	if m.Type == models.MediaTypeVideo || obj.Type == models.MediaTypeVideo {
		return p.uploadChunked(ctx, steps, token, obj)
	}

	call, err := multipartCall(p.cfg.BaseURL+"/2/media/upload", map[string]string{"media_category": "tweet_image"}, obj.Data)
	if err != nil {
		return "", permanent("%v", err)
	}
	call.bearer(token)

	var out transfer.TwitterMediaUploadResponse
	err = steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, call, &out)
		return err
	})
	if err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", permanent("x media upload returned no id")
	}
	return out.Data.ID, nil
}

func (p *Twitter) uploadChunked(ctx context.Context, steps *stepRunner, token string, obj *media.Object) (string, error) {
	endpoint := p.cfg.BaseURL + "/2/media/upload"

	initCall, err := multipartCall(endpoint, map[string]string{
		"command":        "INIT",
		"total_bytes":    strconv.Itoa(len(obj.Data)),
		"media_type":     obj.ContentType,
		"media_category": "tweet_video",
	}, nil)
	if err != nil {
		return "", permanent("%v", err)
	}
	initCall.bearer(token)

	var initOut transfer.TwitterMediaUploadResponse
	if err := steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, initCall, &initOut)
		return err
	}); err != nil {
		return "", err
	}
	mediaID := initOut.Data.ID
	if mediaID == "" {
		return "", permanent("x media INIT returned no id")
	}

	for i, start := 0, 0; start < len(obj.Data); i, start = i+1, start+twitterChunkSize {
		end := min(start+twitterChunkSize, len(obj.Data))
		appendCall, err := multipartCall(endpoint, map[string]string{
			"command":       "APPEND",
			"media_id":      mediaID,
			"segment_index": strconv.Itoa(i),
		}, obj.Data[start:end])
		if err != nil {
			return "", permanent("%v", err)
		}
		appendCall.bearer(token)
		if err := steps.run(ctx, func(ctx context.Context) error {
			_, err := p.api.do(ctx, appendCall, nil)
			return err
		}); err != nil {
			return "", err
		}
	}

	finCall, err := multipartCall(endpoint, map[string]string{"command": "FINALIZE", "media_id": mediaID}, nil)
	if err != nil {
		return "", permanent("%v", err)
	}
	finCall.bearer(token)

	var finOut transfer.TwitterMediaUploadResponse
	if err := steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, finCall, &finOut)
		return err
	}); err != nil {
		return "", err
	}

	if err := p.waitProcessed(ctx, steps, token, mediaID, finOut.Data.ProcessingInfo); err != nil {
		return "", err
	}
	return mediaID, nil
}

func (p *Twitter) waitProcessed(ctx context.Context, steps *stepRunner, token, mediaID string, info *transfer.TwitterProcessingInfo) error {
	deadline := time.Now().Add(p.cfg.PollTimeout)
	q := url.Values{}
	q.Set("command", "STATUS")
	q.Set("media_id", mediaID)

	for info != nil {
		switch info.State {
		case "succeeded":
			return nil
		case "failed":
			msg := "processing failed"
			if info.Error != nil {
				msg = info.Error.Message
			}
			return permanent("x media %s: %s", mediaID, msg)
		}
		if time.Now().After(deadline) {
			return transient("x media %s still %s after %s", mediaID, info.State, p.cfg.PollTimeout)
		}

		wait := p.cfg.PollInterval
		if info.CheckAfterSecs > 0 {
			wait = min(wait, time.Duration(info.CheckAfterSecs)*time.Second)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		var out transfer.TwitterMediaUploadResponse
		if err := steps.run(ctx, func(ctx context.Context) error {
			_, err := p.api.do(ctx, getCall(p.cfg.BaseURL+"/2/media/upload?"+q.Encode()).bearer(token), &out)
			return err
		}); err != nil {
			return err
		}
		info = out.Data.ProcessingInfo
	}
	return nil
}

func multipartCall(endpoint string, fields map[string]string, file []byte) (*apiCall, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if file != nil {
		part, err := w.CreateFormFile("media", "media")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(file); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}
	return &apiCall{method: http.MethodPost, url: endpoint, header: http.Header{}, body: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}
