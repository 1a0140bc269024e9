package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/transfer"
)

const permalinkTimeout = 5 * time.Second

// lookupContext bounds a best-effort call made after the post already
// exists. It ignores cancellation of ctx and ends at the latest halfway to
// the ctx deadline, so the lookup can never turn a published post into a
// timeout. ok is false when no time is left.
func lookupContext(ctx context.Context) (context.Context, context.CancelFunc, bool) {
	budget := permalinkTimeout
	if deadline, has := ctx.Deadline(); has {
		if half := time.Until(deadline) / 2; half < budget {
			budget = half
		}
	}
	if budget <= 0 {
		return nil, nil, false
	}
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget)
	return lctx, cancel, true
}

// decodeGraphError reads the Graph API error envelope shared by Instagram
// and Facebook. The is_transient flag wins over the HTTP status.
func decodeGraphError(status int, body []byte) *Error {
	var ge transfer.GraphError
	if err := json.Unmarshal(body, &ge); err != nil || ge.Error.Message == "" {
		return nil
	}
	e := statusError(status, ge.Error.Message)
	if ge.Error.IsTransient {
		e.Kind = models.ErrorKindTransient
	}
	return e
}
