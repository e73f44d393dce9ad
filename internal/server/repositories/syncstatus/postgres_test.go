package syncstatus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/verdalabs/wellspring/internal/common"
	"github.com/verdalabs/wellspring/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, func() { db.Close() }
}

func TestGet_ExistingRow(t *testing.T) {
	repo, mock, closeDB := newRepoWithMock(t)
	defer closeDB()

	ts := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT last_sync_at, pending_changes, sync_errors FROM sync_status`).
		WithArgs("u1", "dev-1").
		WillReturnRows(sqlmock.NewRows([]string{"last_sync_at", "pending_changes", "sync_errors"}).
			AddRow(ts, 2, []byte(`[{"local_id":"a1","entry_type":"mood","error":"boom"}]`)))

	st, err := repo.Get(context.Background(), "u1", "dev-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.LastSyncAt == nil || !st.LastSyncAt.Equal(ts) {
		t.Fatalf("unexpected last_sync_at: %v", st.LastSyncAt)
	}
	if st.PendingChanges != 2 || len(st.SyncErrors) != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if st.SyncErrors[0].LocalID != "a1" {
		t.Fatalf("unexpected sync error: %+v", st.SyncErrors[0])
	}
}

func TestGet_MissingRowIsNotFound(t *testing.T) {
	repo, mock, closeDB := newRepoWithMock(t)
	defer closeDB()

	mock.ExpectQuery(`SELECT last_sync_at, pending_changes, sync_errors FROM sync_status`).
		WithArgs("u1", "fresh-device").
		WillReturnRows(sqlmock.NewRows([]string{"last_sync_at", "pending_changes", "sync_errors"}))

	_, err := repo.Get(context.Background(), "u1", "fresh-device")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestUpsert_WritesErrorListAsJSON(t *testing.T) {
	repo, mock, closeDB := newRepoWithMock(t)
	defer closeDB()

	ts := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)INSERT INTO sync_status .*ON CONFLICT \(user_id, device_id\).*DO UPDATE SET`).
		WithArgs("u1", "dev-1", ts, 1, []byte(`[{"local_id":"a1","entry_type":"mood","error":"boom"}]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), "u1", "dev-1", ts, 1, []models.FailedEntry{
		{LocalID: "a1", EntryType: "mood", Error: "boom"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsert_NilErrorsBecomeEmptyList(t *testing.T) {
	repo, mock, closeDB := newRepoWithMock(t)
	defer closeDB()

	ts := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)INSERT INTO sync_status`).
		WithArgs("u1", "dev-1", ts, 0, []byte(`[]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(context.Background(), "u1", "dev-1", ts, 0, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, closeDB := newRepoWithMock(t)
	defer closeDB()

	mock.ExpectExec(`DELETE FROM sync_status WHERE user_id = \$1 AND device_id = \$2`).
		WithArgs("u1", "dev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "u1", "dev-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
