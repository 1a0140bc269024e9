package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/internal/models"
)

// Register mounts the queue handlers on an asynq mux.
func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypePublishPost, q.HandlePublishPostTask)
}

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskTypePublishPost, err, asynq.SkipRetry)
	}

	_, err := q.PublishPost(ctx, payload.PostID)
	return err
}

// PublishPost claims a scheduled post and runs one publish cycle. A post
// that is gone or already claimed is skipped with a nil result.
func (q *Queue) PublishPost(ctx context.Context, postID int64) (*models.PostResult, error) {
	log := q.log.With(zap.Int64("post_id", postID))

	post, err := q.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load post %d: %w", postID, err)
	}
	if post == nil {
		log.Warn("post no longer exists")
		return nil, nil
	}

	claimed, err := q.pr.Claim(ctx, postID, []models.PostStatus{models.PostStatusScheduled}, q.now())
	if err != nil {
		return nil, fmt.Errorf("claim post %d: %w", postID, err)
	}
	if !claimed {
		log.Debug("post already claimed", zap.String("status", string(post.Status)))
		return nil, nil
	}
	post.Status = models.PostStatusPublishing

	return q.orch.Publish(ctx, post), nil
}
