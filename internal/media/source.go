package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

// MaxObjectSize bounds how much of a media object is read into memory.
const MaxObjectSize = 512 << 20

var ErrTooLarge = errors.New("media object exceeds size limit")

type Object struct {
	Data        []byte
	ContentType string
	Type        models.MediaType
}

// Source loads media bytes for platforms that need an upload rather than a
// URL they can pull themselves.
type Source interface {
	Fetch(ctx context.Context, url string) (*Object, error)
}

type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type source struct {
	client    *http.Client
	bucket    ObjectGetter
	bucketURL string
	bucketKey string
	log       *zap.Logger
}

// NewSource fetches over HTTP. When bucket is non-nil, URLs under publicURL
// are read straight from the bucket instead.
func NewSource(client *http.Client, bucket ObjectGetter, bucketName, publicURL string) Source {
	return &source{
		client:    client,
		bucket:    bucket,
		bucketURL: strings.TrimSuffix(publicURL, "/") + "/",
		bucketKey: bucketName,
		log:       logging.WithComponent("media"),
	}
}

func (s *source) Fetch(ctx context.Context, url string) (*Object, error) {
	var (
		data        []byte
		contentType string
		err         error
	)
	if s.bucket != nil && s.bucketURL != "/" && strings.HasPrefix(url, s.bucketURL) {
		data, contentType, err = s.fromBucket(ctx, strings.TrimPrefix(url, s.bucketURL))
	} else {
		data, contentType, err = s.fromHTTP(ctx, url)
	}
	if err != nil {
		return nil, err
	}

	obj := &Object{Data: data, ContentType: contentType}
	Sniff(obj)
	s.log.Debug("media fetched", zap.String("url", url), zap.Int("bytes", len(data)), zap.String("content_type", obj.ContentType))
	return obj, nil
}

func (s *source) fromBucket(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.bucket.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketKey),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := readLimited(out.Body)
	if err != nil {
		return nil, "", err
	}
	return data, aws.ToString(out.ContentType), nil
}

func (s *source) fromHTTP(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func readLimited(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxObjectSize+1))
	if err != nil {
		return nil, err
	}
	if n > MaxObjectSize {
		return nil, ErrTooLarge
	}
	return buf.Bytes(), nil
}

// Sniff fills in ContentType and Type from the magic bytes when the
// transport did not give a usable content type.
func Sniff(obj *Object) {
	ct := strings.TrimSpace(strings.Split(obj.ContentType, ";")[0])
	if ct == "" || ct == "application/octet-stream" || ct == "binary/octet-stream" {
		if kind, err := filetype.Match(obj.Data); err == nil && kind != filetype.Unknown {
			ct = kind.MIME.Value
		}
	}
	obj.ContentType = ct

	switch {
	case strings.HasPrefix(ct, "video/"):
		obj.Type = models.MediaTypeVideo
	case strings.HasPrefix(ct, "image/"):
		obj.Type = models.MediaTypeImage
	}
}
