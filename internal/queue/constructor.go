package queue

import (
	"time"

	"go.uber.org/zap"

	"github.com/maheshrc27/publish-engine/internal/orchestrator"
	"github.com/maheshrc27/publish-engine/internal/repository"
	"github.com/maheshrc27/publish-engine/pkg/logging"
)

type Queue struct {
	pr   repository.PostRepository
	orch orchestrator.Orchestrator
	now  func() time.Time
	log  *zap.Logger
}

func NewQueue(pr repository.PostRepository, orch orchestrator.Orchestrator) *Queue {
	return &Queue{
		pr:   pr,
		orch: orch,
		now:  time.Now,
		log:  logging.WithComponent("queue"),
	}
}

const TaskTypePublishPost = "post:publish"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
