package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/repository"
	"github.com/maheshrc27/publish-engine/internal/token"
)

type expiringAccounts struct {
	repository.SocialAccountRepository
	accounts []*models.SocialAccount
	before   time.Time
}

func (e *expiringAccounts) ListExpiring(_ context.Context, before time.Time) ([]*models.SocialAccount, error) {
	e.before = before
	return e.accounts, nil
}

type fakeManager struct {
	mu       sync.Mutex
	resolved []int64
	fail     map[int64]bool
}

func (f *fakeManager) Resolve(_ context.Context, id int64) (*token.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, id)
	if f.fail[id] {
		return nil, &token.CredentialError{AccountID: id, Kind: models.ErrorKindReauthRequired, Err: token.ErrInvalidGrant}
	}
	return &token.Credential{}, nil
}

func TestTokenRefreshJob(t *testing.T) {
	repo := &expiringAccounts{accounts: []*models.SocialAccount{
		{ID: 1, Platform: models.PlatformInstagram},
		{ID: 2, Platform: models.PlatformTiktok},
		{ID: 3, Platform: models.PlatformYoutube},
	}}
	mgr := &fakeManager{fail: map[int64]bool{2: true}}
	job := NewTokenRefreshJob(repo, mgr, 7*24*time.Hour, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	refreshed, failed := job.Run(context.Background())

	if refreshed != 2 || failed != 1 {
		t.Errorf("refreshed, failed = %d, %d; want 2, 1", refreshed, failed)
	}
	if len(mgr.resolved) != 3 {
		t.Errorf("resolved %v", mgr.resolved)
	}
	if want := now.Add(7 * 24 * time.Hour); !repo.before.Equal(want) {
		t.Errorf("listed accounts expiring before %s, want %s", repo.before, want)
	}
}

type stubTicker struct {
	calls       int
	err         error
	hasDeadline bool
}

func (s *stubTicker) Tick(ctx context.Context, _ time.Time) ([]*models.PostResult, error) {
	s.calls++
	_, s.hasDeadline = ctx.Deadline()
	return []*models.PostResult{{PostID: 1, Status: models.PostStatusFailed}}, s.err
}

func TestSchedulerJobRun(t *testing.T) {
	ticker := &stubTicker{err: errors.New("list due posts: timeout")}
	NewSchedulerJob(ticker).Run()
	if ticker.calls != 1 {
		t.Errorf("Tick called %d times", ticker.calls)
	}
	if ticker.hasDeadline {
		t.Error("tick context carries a deadline; only targets are bounded")
	}
}
