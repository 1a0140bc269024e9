package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/publish-engine/internal/api/middleware"
	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/service"
	"github.com/maheshrc27/publish-engine/internal/transfer"
	"github.com/maheshrc27/publish-engine/pkg/utils"
)

const testSecret = "test-secret"

type stubService struct {
	workspace int64
	submitErr error
	resultErr error
}

func (s *stubService) Submit(_ context.Context, ws int64, _ *transfer.SubmitPostRequest) (*transfer.SubmitPostResponse, error) {
	s.workspace = ws
	resp := &transfer.SubmitPostResponse{PostID: 11, Status: models.PostStatusScheduled,
		Validation: []transfer.TargetValidation{{TargetID: 1, Platform: models.PlatformTwitter, Valid: s.submitErr == nil}}}
	if s.submitErr != nil {
		resp.PostID, resp.Status = 0, ""
	}
	return resp, s.submitErr
}

func (s *stubService) Validate(ctx context.Context, ws int64, req *transfer.SubmitPostRequest) (*transfer.SubmitPostResponse, error) {
	return s.Submit(ctx, ws, req)
}

func (s *stubService) Result(_ context.Context, ws, id int64) (*models.PostResult, error) {
	s.workspace = ws
	if s.resultErr != nil {
		return nil, s.resultErr
	}
	return &models.PostResult{PostID: id, Status: models.PostStatusPublished}, nil
}

func (s *stubService) Republish(ctx context.Context, ws, id int64) (*models.PostResult, error) {
	return s.Result(ctx, ws, id)
}

func newApp(svc service.PostService) *fiber.App {
	app := fiber.New()
	auth := middleware.NewAuthMiddleware(testSecret, "tick-secret")
	api := app.Group("/api", auth.AuthMiddleware())
	h := NewPostHandler(svc)
	api.Post("/posts", h.CreatePost)
	api.Post("/posts/validate", h.ValidatePost)
	api.Get("/posts/:id/result", h.PostResult)
	api.Post("/posts/:id/republish", h.RepublishPost)
	return app
}

func authed(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, 7, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAuthMiddleware(t *testing.T) {
	app := newApp(&stubService{})

	wrongKey, _ := utils.GenerateToken("other-secret", 7, time.Hour)
	expired, _ := utils.GenerateToken(testSecret, 7, -time.Minute)
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"wrong key", "Bearer " + wrongKey},
		{"expired", "Bearer " + expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/posts/1/result", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != fiber.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestCreatePost(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"created", `{"content":"hi","target_ids":[1]}`, nil, fiber.StatusCreated},
		{"bad json", `{`, nil, fiber.StatusBadRequest},
		{"no valid targets", `{"content":"hi","target_ids":[1]}`, service.ErrNoValidTargets, fiber.StatusUnprocessableEntity},
		{"foreign account", `{"content":"hi","target_ids":[9]}`, fmt.Errorf("%w: 9", service.ErrAccountNotFound), fiber.StatusBadRequest},
		{"store down", `{"content":"hi","target_ids":[1]}`, errors.New("connection reset"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{submitErr: tt.err}
			resp, err := newApp(svc).Test(authed(t, http.MethodPost, "/api/posts", tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				body, _ := io.ReadAll(resp.Body)
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
			if tt.wantStatus == fiber.StatusCreated && svc.workspace != 7 {
				t.Errorf("workspace = %d, want 7 from the token", svc.workspace)
			}
			if tt.wantStatus == fiber.StatusUnprocessableEntity {
				var out struct {
					Validation []transfer.TargetValidation `json:"validation"`
				}
				json.NewDecoder(resp.Body).Decode(&out)
				if len(out.Validation) != 1 {
					t.Errorf("validation report missing from 422 body")
				}
			}
		})
	}
}

func TestValidatePostReturnsReportOnFailure(t *testing.T) {
	svc := &stubService{submitErr: service.ErrNoValidTargets}
	resp, err := newApp(svc).Test(authed(t, http.MethodPost, "/api/posts/validate", `{"content":"hi","target_ids":[1]}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestResultAndRepublish(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		err        error
		wantStatus int
	}{
		{"result", http.MethodGet, "/api/posts/5/result", nil, fiber.StatusOK},
		{"result not found", http.MethodGet, "/api/posts/5/result", service.ErrPostNotFound, fiber.StatusNotFound},
		{"bad id", http.MethodGet, "/api/posts/abc/result", nil, fiber.StatusBadRequest},
		{"republish", http.MethodPost, "/api/posts/5/republish", nil, fiber.StatusOK},
		{"republish conflict", http.MethodPost, "/api/posts/5/republish", service.ErrNotRepublishable, fiber.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := newApp(&stubService{resultErr: tt.err}).Test(authed(t, tt.method, tt.path, ""))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

type stubTicker struct {
	results []*models.PostResult
	err     error
}

func (s *stubTicker) Tick(context.Context, time.Time) ([]*models.PostResult, error) {
	return s.results, s.err
}

func TestSchedulerTick(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		ticker     *stubTicker
		wantStatus int
	}{
		{"published", "tick-secret", &stubTicker{results: []*models.PostResult{{PostID: 1}}}, fiber.StatusOK},
		{"wrong secret", "nope", &stubTicker{}, fiber.StatusUnauthorized},
		{"listing failed", "tick-secret", &stubTicker{err: errors.New("db down")}, fiber.StatusInternalServerError},
		{"claim errors still report", "tick-secret", &stubTicker{results: []*models.PostResult{{PostID: 2}}, err: errors.New("claim")}, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			auth := middleware.NewAuthMiddleware(testSecret, "tick-secret")
			app.Post("/internal/scheduler/tick", auth.SchedulerSecret(), NewSchedulerHandler(tt.ticker).Tick)

			req := httptest.NewRequest(http.MethodPost, "/internal/scheduler/tick", nil)
			req.Header.Set("X-Scheduler-Secret", tt.secret)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	app := fiber.New()
	app.Get("/healthz", NewHealthHandler(db).Healthz)

	mock.ExpectPing()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	mock.ExpectPing().WillReturnError(errors.New("down"))
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}
