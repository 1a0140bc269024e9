package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/maheshrc27/publish-engine/internal/models"
)

var postRowColumns = []string{"id", "workspace_id", "content", "title", "format", "media", "target_ids",
	"scheduled_time", "status", "cycle_id", "published_at", "created_at", "updated_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestPostRepositoryGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(postRowColumns).AddRow(
		int64(11), int64(2), "launch day", "", "reel",
		[]byte(`[{"url":"https://cdn.example/v.mp4","type":"video","width":1080,"height":1920,"duration_sec":30}]`),
		"{3,4}", due, "scheduled", "", nil, due, due,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM posts WHERE id = $1")).WithArgs(int64(11)).WillReturnRows(rows)

	post, err := repo.GetByID(ctx, 11)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if post == nil {
		t.Fatal("expected post")
	}
	if len(post.TargetIDs) != 2 || post.TargetIDs[0] != 3 || post.TargetIDs[1] != 4 {
		t.Errorf("TargetIDs = %v", post.TargetIDs)
	}
	if len(post.Media) != 1 || post.Media[0].Type != models.MediaTypeVideo || post.Media[0].Height != 1920 {
		t.Errorf("Media = %+v", post.Media)
	}
	if post.ScheduledTime == nil || !post.ScheduledTime.Equal(due) {
		t.Errorf("ScheduledTime = %v", post.ScheduledTime)
	}
	if post.PublishedAt != nil {
		t.Errorf("PublishedAt = %v, want nil", post.PublishedAt)
	}
	if post.Format != models.FormatReel || post.Status != models.PostStatusScheduled {
		t.Errorf("Format/Status = %s/%s", post.Format, post.Status)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM posts WHERE id = $1")).WithArgs(int64(12)).WillReturnError(sql.ErrNoRows)
	post, err = repo.GetByID(ctx, 12)
	if err != nil || post != nil {
		t.Errorf("missing post: got %v, %v; want nil, nil", post, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostRepositoryClaim(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"winner", 1, true},
		{"already claimed", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewPostRepository(db)
			now := time.Now()

			mock.ExpectExec(regexp.QuoteMeta("WHERE id = $3 AND status = ANY($4)")).
				WithArgs("publishing", now, int64(5), "{\"scheduled\"}").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.Claim(context.Background(), 5, []models.PostStatus{models.PostStatusScheduled}, now)
			if err != nil {
				t.Fatalf("Claim: %v", err)
			}
			if got != tt.want {
				t.Errorf("Claim() = %v, want %v", got, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestPostRepositoryReclaimStale(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"stale", 1, true},
		{"still fresh", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewPostRepository(db)
			now := time.Now()
			before := now.Add(-30 * time.Minute)

			mock.ExpectExec(regexp.QuoteMeta("WHERE id = $2 AND status = $3 AND updated_at < $4")).
				WithArgs(now, int64(5), "publishing", before).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.ReclaimStale(context.Background(), 5, before, now)
			if err != nil {
				t.Fatalf("ReclaimStale: %v", err)
			}
			if got != tt.want {
				t.Errorf("ReclaimStale() = %v, want %v", got, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestPostRepositoryListDue(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	late := now.Add(-3 * time.Hour)

	rows := sqlmock.NewRows(postRowColumns).
		AddRow(int64(1), int64(2), "a", "", "post", []byte(`[]`), "{7}", late, "scheduled", "", nil, late, late).
		AddRow(int64(2), int64(2), "b", "", "post", nil, "{8}", now, "scheduled", "", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("scheduled_time <= $2")).
		WithArgs("scheduled", now, 50).
		WillReturnRows(rows)

	posts, err := repo.ListDue(context.Background(), now, 50)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].ID != 1 || posts[1].TargetIDs[0] != 8 {
		t.Errorf("unexpected posts: %+v %+v", posts[0], posts[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostRepositoryComplete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostRepository(db)
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts")).
		WithArgs("partially_published", "cyc-1", at, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Complete(context.Background(), 9, models.PostStatusPartiallyPublished, "cyc-1", at); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
