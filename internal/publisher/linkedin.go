package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/maheshrc27/publish-engine/internal/media"
	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/transfer"
)

const (
	DefaultLinkedinURL     = "https://api.linkedin.com/rest"
	DefaultLinkedinVersion = "202405"
)

// Linkedin posts as the organization or member URN stored as the account id.
// Media are uploaded first and referenced by URN in the post.
type Linkedin struct {
	cfg     Config
	api     *apiClient
	source  media.Source
	version string
}

func NewLinkedin(cfg Config, source media.Source, version string) *Linkedin {
	cfg = cfg.withDefaults(DefaultLinkedinURL)
	if version == "" {
		version = DefaultLinkedinVersion
	}
	return &Linkedin{
		cfg:     cfg,
		api:     &apiClient{http: cfg.HTTPClient, decodeErr: decodeLinkedinError},
		source:  source,
		version: version,
	}
}

func decodeLinkedinError(status int, body []byte) *Error {
	var le transfer.LinkedinError
	if err := json.Unmarshal(body, &le); err != nil || le.Message == "" {
		return nil
	}
	return statusError(status, le.Message)
}

func (p *Linkedin) Publish(ctx context.Context, req *Request) (*Result, error) {
	steps := newStepRunner(p.cfg.Backoff)

	content, err := p.content(ctx, steps, req)
	if err != nil {
		return nil, err
	}

	post := transfer.LinkedinPost{
		Author:     req.AccountID,
		Commentary: escapeLittleText(req.Content),
		Visibility: "PUBLIC",
		Distribution: transfer.LinkedinDistribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []string{},
			ThirdPartyDistributionChannels: []string{},
		},
		Content:        content,
		LifecycleState: "PUBLISHED",
	}
	call, err := jsonCall(http.MethodPost, p.cfg.BaseURL+"/posts", post)
	if err != nil {
		return nil, permanent("%v", err)
	}

	var resp *apiResponse
	err = steps.run(ctx, func(ctx context.Context) error {
		var err error
		resp, err = p.api.do(ctx, p.sign(call, req.AccessToken), nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	urn := resp.header.Get("x-restli-id")
	if urn == "" {
		return nil, permanent("linkedin returned no post urn")
	}
	return &Result{
		RemotePostID: urn,
		Permalink:    "https://www.linkedin.com/feed/update/" + urn,
		Retries:      steps.retries,
	}, nil
}

func (p *Linkedin) content(ctx context.Context, steps *stepRunner, req *Request) (*transfer.LinkedinContent, error) {
	if len(req.Media) == 0 {
		return nil, nil
	}
	if videos := req.videos(); len(videos) > 0 {
		urn, err := p.uploadVideo(ctx, steps, req, videos[0])
		if err != nil {
			return nil, err
		}
		return &transfer.LinkedinContent{Media: &transfer.LinkedinMedia{ID: urn}}, nil
	}

	images := make([]transfer.LinkedinMedia, 0, len(req.Media))
	for _, m := range req.Media {
		urn, err := p.uploadImage(ctx, steps, req, m)
		if err != nil {
			return nil, err
		}
		images = append(images, transfer.LinkedinMedia{ID: urn})
	}
	if len(images) == 1 {
		return &transfer.LinkedinContent{Media: &images[0]}, nil
	}
	return &transfer.LinkedinContent{MultiImage: &transfer.LinkedinMultiImage{Images: images}}, nil
}

func (p *Linkedin) uploadImage(ctx context.Context, steps *stepRunner, req *Request, m models.Media) (string, error) {
	obj, err := fetch(ctx, steps, p.source, m.URL)
	if err != nil {
		return "", err
	}

	var init transfer.LinkedinInitializeUploadRequest
	init.InitializeUploadRequest.Owner = req.AccountID
	call, err := jsonCall(http.MethodPost, p.cfg.BaseURL+"/images?action=initializeUpload", init)
	if err != nil {
		return "", permanent("%v", err)
	}

	var out transfer.LinkedinInitializeUploadResponse
	err = steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, p.sign(call, req.AccessToken), &out)
		return err
	})
	if err != nil {
		return "", err
	}

	if _, err := p.put(ctx, steps, req.AccessToken, out.Value.UploadURL, obj.Data, obj.ContentType); err != nil {
		return "", err
	}
	return out.Value.Image, nil
}

// uploadVideo runs initializeUpload, one PUT per upload instruction, then
// finalizeUpload with the returned part ETags.
func (p *Linkedin) uploadVideo(ctx context.Context, steps *stepRunner, req *Request, m models.Media) (string, error) {
	obj, err := fetch(ctx, steps, p.source, m.URL)
	if err != nil {
		return "", err
	}

	var init transfer.LinkedinVideoInitializeUploadRequest
	init.InitializeUploadRequest.Owner = req.AccountID
	init.InitializeUploadRequest.FileSizeBytes = int64(len(obj.Data))
	call, err := jsonCall(http.MethodPost, p.cfg.BaseURL+"/videos?action=initializeUpload", init)
	if err != nil {
		return "", permanent("%v", err)
	}

	var out transfer.LinkedinVideoInitializeUploadResponse
	err = steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, p.sign(call, req.AccessToken), &out)
		return err
	})
	if err != nil {
		return "", err
	}

	size := int64(len(obj.Data))
	etags := make([]string, 0, len(out.Value.UploadInstructions))
	for _, ins := range out.Value.UploadInstructions {
		if ins.FirstByte < 0 || ins.LastByte >= size || ins.FirstByte > ins.LastByte {
			return "", permanent("linkedin upload instruction out of range: %d-%d of %d", ins.FirstByte, ins.LastByte, size)
		}
		etag, err := p.put(ctx, steps, req.AccessToken, ins.UploadURL, obj.Data[ins.FirstByte:ins.LastByte+1], "application/octet-stream")
		if err != nil {
			return "", err
		}
		etags = append(etags, etag)
	}

	var fin transfer.LinkedinFinalizeUploadRequest
	fin.FinalizeUploadRequest.Video = out.Value.Video
	fin.FinalizeUploadRequest.UploadToken = out.Value.UploadToken
	fin.FinalizeUploadRequest.UploadedPartIDs = etags
	call, err = jsonCall(http.MethodPost, p.cfg.BaseURL+"/videos?action=finalizeUpload", fin)
	if err != nil {
		return "", permanent("%v", err)
	}
	err = steps.run(ctx, func(ctx context.Context) error {
		_, err := p.api.do(ctx, p.sign(call, req.AccessToken), nil)
		return err
	})
	if err != nil {
		return "", err
	}
	return out.Value.Video, nil
}

func (p *Linkedin) put(ctx context.Context, steps *stepRunner, token, uploadURL string, data []byte, contentType string) (string, error) {
	call := &apiCall{method: http.MethodPut, url: uploadURL, header: http.Header{}, body: data, contentType: contentType}
	call.bearer(token)

	var resp *apiResponse
	err := steps.run(ctx, func(ctx context.Context) error {
		var err error
		resp, err = p.api.do(ctx, call, nil)
		return err
	})
	if err != nil {
		return "", err
	}
	return resp.header.Get("ETag"), nil
}

func (p *Linkedin) sign(call *apiCall, token string) *apiCall {
	call.bearer(token)
	call.header.Set("LinkedIn-Version", p.version)
	call.header.Set("X-Restli-Protocol-Version", "2.0.0")
	return call
}

var littleTextReplacer = strings.NewReplacer(
	`\`, `\\`, `|`, `\|`, `{`, `\{`, `}`, `\}`, `@`, `\@`, `[`, `\[`, `]`, `\]`,
	`(`, `\(`, `)`, `\)`, `<`, `\<`, `>`, `\>`, `#`, `\#`, `*`, `\*`, `_`, `\_`, `~`, `\~`,
)

// escapeLittleText escapes the characters LinkedIn's commentary format
// reserves; unescaped they truncate the post.
func escapeLittleText(s string) string {
	return littleTextReplacer.Replace(s)
}

// fetch loads media bytes as a retryable step.
func fetch(ctx context.Context, steps *stepRunner, source media.Source, url string) (*media.Object, error) {
	var obj *media.Object
	err := steps.run(ctx, func(ctx context.Context) error {
		var err error
		obj, err = source.Fetch(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return transient("fetch media: %v", err)
		}
		return nil
	})
	return obj, err
}
