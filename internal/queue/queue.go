package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/pkg/logging"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher enqueues immediate posts. Tasks are not retried by asynq; a
// post whose task is lost stays scheduled and the scheduler publishes it.
type Dispatcher struct {
	client Enqueuer
	log    *zap.Logger
}

func NewDispatcher(client Enqueuer) *Dispatcher {
	return &Dispatcher{client: client, log: logging.WithComponent("dispatcher")}
}

func (d *Dispatcher) Dispatch(ctx context.Context, postID int64) error {
	payload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, payload, asynq.MaxRetry(0))
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue post %d: %w", postID, err)
	}

	d.log.Debug("task enqueued", zap.Int64("post_id", postID), zap.String("task_id", info.ID))
	return nil
}
