package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/repository"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func TestDispatch(t *testing.T) {
	enq := &fakeEnqueuer{}
	if err := NewDispatcher(enq).Dispatch(context.Background(), 42); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(enq.tasks) != 1 || enq.tasks[0].Type() != TaskTypePublishPost {
		t.Fatalf("tasks = %v", enq.tasks)
	}
	var payload PublishPostPayload
	if err := json.Unmarshal(enq.tasks[0].Payload(), &payload); err != nil || payload.PostID != 42 {
		t.Errorf("payload = %s (%v)", enq.tasks[0].Payload(), err)
	}

	enq.err = errors.New("redis: connection refused")
	if err := NewDispatcher(enq).Dispatch(context.Background(), 43); !errors.Is(err, enq.err) {
		t.Errorf("err = %v, want the enqueue error wrapped", err)
	}
}

type memPosts struct {
	repository.PostRepository
	mu    sync.Mutex
	posts map[int64]*models.Post
}

func (m *memPosts) GetByID(_ context.Context, id int64) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPosts) Claim(_ context.Context, id int64, from []models.PostStatus, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.posts[id]
	for _, s := range from {
		if p.Status == s {
			p.Status = models.PostStatusPublishing
			return true, nil
		}
	}
	return false, nil
}

type countingOrchestrator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingOrchestrator) Publish(_ context.Context, p *models.Post) *models.PostResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &models.PostResult{PostID: p.ID, Status: models.PostStatusPublished}
}

func TestHandlePublishPostTask(t *testing.T) {
	tests := []struct {
		name      string
		status    models.PostStatus
		postID    int64
		wantCalls int
	}{
		{"scheduled post is published", models.PostStatusScheduled, 1, 1},
		{"claimed post is skipped", models.PostStatusPublishing, 1, 0},
		{"draft is skipped", models.PostStatusDraft, 1, 0},
		{"missing post is skipped", models.PostStatusScheduled, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts := &memPosts{posts: map[int64]*models.Post{1: {ID: 1, Status: tt.status}}}
			orch := &countingOrchestrator{}
			q := NewQueue(posts, orch)

			payload, _ := json.Marshal(PublishPostPayload{PostID: tt.postID})
			if err := q.HandlePublishPostTask(context.Background(), asynq.NewTask(TaskTypePublishPost, payload)); err != nil {
				t.Fatalf("HandlePublishPostTask: %v", err)
			}
			if orch.calls != tt.wantCalls {
				t.Errorf("orchestrator calls = %d, want %d", orch.calls, tt.wantCalls)
			}
		})
	}
}

func TestHandleTaskAndSchedulerRace(t *testing.T) {
	posts := &memPosts{posts: map[int64]*models.Post{1: {ID: 1, Status: models.PostStatusScheduled}}}
	orch := &countingOrchestrator{}
	q := NewQueue(posts, orch)

	var wg sync.WaitGroup
	for n := 0; n < 5; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.PublishPost(context.Background(), 1)
		}()
	}
	wg.Wait()

	if orch.calls != 1 {
		t.Errorf("published %d times, want 1", orch.calls)
	}
}

func TestHandleMalformedPayload(t *testing.T) {
	q := NewQueue(&memPosts{}, &countingOrchestrator{})
	err := q.HandlePublishPostTask(context.Background(), asynq.NewTask(TaskTypePublishPost, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("err = %v, want SkipRetry", err)
	}
}
