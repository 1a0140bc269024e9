package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/maheshrc27/publish-engine/internal/models"
)

var accountRowColumns = []string{"id", "workspace_id", "platform", "account_id", "account_name", "access_token",
	"refresh_token", "token_expires_at", "active", "created_at", "updated_at"}

func TestSocialAccountRepositoryListByIDs(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSocialAccountRepository(db)
	exp := time.Now().Add(time.Hour)

	rows := sqlmock.NewRows(accountRowColumns).
		AddRow(int64(3), int64(2), "instagram", "1784", "brand", "enc-a", "", exp, true, exp, exp).
		AddRow(int64(4), int64(2), "linkedin", "urn:li:organization:9", "brand", "enc-b", "", nil, false, exp, exp)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ANY($1)")).WithArgs("{3,4,5}").WillReturnRows(rows)

	accounts, err := repo.ListByIDs(context.Background(), []int64{3, 4, 5})
	if err != nil {
		t.Fatalf("ListByIDs: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(accounts))
	}
	if accounts[0].Platform != models.PlatformInstagram || accounts[0].TokenExpiresAt == nil {
		t.Errorf("first account = %+v", accounts[0])
	}
	if accounts[1].Active || accounts[1].TokenExpiresAt != nil {
		t.Errorf("second account = %+v", accounts[1])
	}

	if got, err := repo.ListByIDs(context.Background(), nil); err != nil || got != nil {
		t.Errorf("empty ids: got %v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSocialAccountRepositoryUpdateToken(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"stored token matched", 1, true},
		{"lost the race", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewSocialAccountRepository(db)
			exp := time.Now().Add(60 * 24 * time.Hour)

			mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND access_token = $2")).
				WithArgs(int64(3), "old", "new", "", &exp).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.UpdateToken(context.Background(), 3, "old", &models.SocialAccount{
				AccessToken:    "new",
				TokenExpiresAt: &exp,
			})
			if err != nil {
				t.Fatalf("UpdateToken: %v", err)
			}
			if ok != tt.want {
				t.Errorf("UpdateToken() = %v, want %v", ok, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSocialAccountRepositoryDeactivate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSocialAccountRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET active = FALSE")).WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Deactivate(context.Background(), 4); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
