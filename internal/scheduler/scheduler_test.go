package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/repository"
)

type memPosts struct {
	repository.PostRepository

	mu       sync.Mutex
	posts    map[int64]*models.Post
	listErr  error
	claimErr map[int64]error
}

func (m *memPosts) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Post, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Post
	for _, p := range m.posts {
		if p.IsDue(now) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPosts) Claim(_ context.Context, id int64, from []models.PostStatus, _ time.Time) (bool, error) {
	if err := m.claimErr[id]; err != nil {
		return false, err
	}
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
	calls map[int64]int
	now   time.Time
}

func (c *countingOrchestrator) Publish(_ context.Context, post *models.Post) *models.PostResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[int64]int{}
	}
	c.calls[post.ID]++
	return &models.PostResult{PostID: post.ID, Status: models.PostStatusPublished, PublishedAt: c.now}
}

func at(t time.Time) *time.Time { return &t }

func TestTickPublishesDuePosts(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	posts := &memPosts{posts: map[int64]*models.Post{
		1: {ID: 1, Status: models.PostStatusScheduled, ScheduledTime: at(now.Add(-time.Minute))},
		2: {ID: 2, Status: models.PostStatusScheduled, ScheduledTime: at(now.Add(time.Hour))},
		3: {ID: 3, Status: models.PostStatusScheduled},
		4: {ID: 4, Status: models.PostStatusDraft},
		5: {ID: 5, Status: models.PostStatusScheduled, ScheduledTime: at(now.Add(-3 * time.Hour))},
	}}
	orch := &countingOrchestrator{now: now}

	results, err := New(posts, orch, Options{}).Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("published %d posts, want 3", len(results))
	}
	for _, id := range []int64{1, 3, 5} {
		if orch.calls[id] != 1 {
			t.Errorf("post %d published %d times", id, orch.calls[id])
		}
	}
	for _, id := range []int64{2, 4} {
		if orch.calls[id] != 0 {
			t.Errorf("post %d should not be published", id)
		}
	}
	for _, r := range results {
		if r.PostID == 5 && !r.PublishedAt.Equal(now) {
			t.Errorf("late post PublishedAt = %s, want %s", r.PublishedAt, now)
		}
	}
}

func TestConcurrentTicksPublishOnce(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	posts := &memPosts{posts: map[int64]*models.Post{}}
	for id := int64(1); id <= 20; id++ {
		posts.posts[id] = &models.Post{ID: id, Status: models.PostStatusScheduled, ScheduledTime: at(now.Add(-time.Second))}
	}
	orch := &countingOrchestrator{now: now}
	s := New(posts, orch, Options{PostConcurrency: 3})

	var wg sync.WaitGroup
	for n := 0; n < 4; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Tick(context.Background(), now); err != nil {
				t.Errorf("Tick: %v", err)
			}
		}()
	}
	wg.Wait()

	for id := int64(1); id <= 20; id++ {
		if orch.calls[id] != 1 {
			t.Errorf("post %d published %d times, want 1", id, orch.calls[id])
		}
	}
}

func TestTickErrors(t *testing.T) {
	now := time.Now()

	t.Run("listing failure aborts", func(t *testing.T) {
		posts := &memPosts{listErr: errors.New("connection refused")}
		if _, err := New(posts, &countingOrchestrator{}, Options{}).Tick(context.Background(), now); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("claim failure does not block other posts", func(t *testing.T) {
		claimErr := errors.New("deadlock detected")
		posts := &memPosts{
			posts: map[int64]*models.Post{
				1: {ID: 1, Status: models.PostStatusScheduled},
				2: {ID: 2, Status: models.PostStatusScheduled},
			},
			claimErr: map[int64]error{1: claimErr},
		}
		orch := &countingOrchestrator{}
		results, err := New(posts, orch, Options{}).Tick(context.Background(), now)
		if !errors.Is(err, claimErr) {
			t.Errorf("err = %v, want the claim error", err)
		}
		if len(results) != 1 || orch.calls[2] != 1 {
			t.Errorf("results = %v, calls = %v", results, orch.calls)
		}
	})
}
