package publisher

import (
	"context"
	"time"

	"github.com/maheshrc27/publish-engine/internal/models"
)

// DefaultBackoff is the pause before the single retry of a transient failure.
const DefaultBackoff = 2 * time.Second

// Request is everything a platform needs to create one post. AccountID is
// the platform-side identity: a user id, page id or author URN.
type Request struct {
	AccessToken string
	AccountID   string
	Content     string
	Title       string
	Format      models.Format
	Media       []models.Media
}

type Result struct {
	RemotePostID string
	Permalink    string
	Retries      int
}

// Publisher creates a post on one platform. Failures are *Error, or the
// context error when ctx ends first.
type Publisher interface {
	Publish(ctx context.Context, req *Request) (*Result, error)
}

// Registry maps each supported platform to its publisher.
type Registry map[models.Platform]Publisher

func (r Registry) Lookup(p models.Platform) (Publisher, bool) {
	pub, ok := r[p]
	return pub, ok
}

func (r *Request) videos() []models.Media {
	var out []models.Media
	for _, m := range r.Media {
		if m.Type == models.MediaTypeVideo {
			out = append(out, m)
		}
	}
	return out
}

func (r *Request) hasVideo() bool {
	return len(r.videos()) > 0
}
