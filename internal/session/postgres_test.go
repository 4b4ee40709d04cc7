package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
)

var sessionCols = []string{"id", "subject_id", "payload", "sealed_token", "expires_at", "updated_at"}

func newPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newPostgresStore(t)
	exp := time.Now().Add(time.Hour)

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("sid-1", "7", sqlmock.AnyArg(), "sealed", exp, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := &Record{
		ID:          "sid-1",
		Session:     &auth.Session{ID: "sid-1", SubjectID: "7"},
		SealedToken: "sealed",
		ExpiresAt:   exp,
	}
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresStore_SaveInvalid(t *testing.T) {
	store, _ := newPostgresStore(t)
	if err := store.Save(context.Background(), &Record{ID: "x"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Save() error = %v, want ErrInvalid", err)
	}
}

func TestPostgresStore_SaveDBError(t *testing.T) {
	store, mock := newPostgresStore(t)
	mock.ExpectExec("INSERT INTO sessions").WillReturnError(errors.New("connection reset"))
	err := store.Save(context.Background(), &Record{ID: "a", Session: &auth.Session{ID: "a"}})
	if err == nil {
		t.Fatal("Save() expected error")
	}
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newPostgresStore(t)
	payload, _ := json.Marshal(&auth.Session{ID: "sid-1", SubjectID: "7", Email: "ana@test.com"})
	exp := time.Now().Add(time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM sessions").
		WithArgs("sid-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow("sid-1", "7", payload, "sealed", exp, time.Now()))

	rec, err := store.Get(context.Background(), "sid-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if rec.Session.Email != "ana@test.com" || rec.SealedToken != "sealed" {
		t.Errorf("Get() = %+v", rec)
	}
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := newPostgresStore(t)
	mock.ExpectQuery("SELECT (.+) FROM sessions").WillReturnError(sql.ErrNoRows)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestPostgresStore_GetCorruptPayload(t *testing.T) {
	store, mock := newPostgresStore(t)
	mock.ExpectQuery("SELECT (.+) FROM sessions").
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow("sid", "7", []byte("{not json"), "", time.Now(), time.Now()))
	if _, err := store.Get(context.Background(), "sid"); err == nil {
		t.Error("Get() expected unmarshal error")
	}
}

func TestPostgresStore_DeleteAndCleanup(t *testing.T) {
	store, mock := newPostgresStore(t)
	mock.ExpectExec("DELETE FROM sessions WHERE id").WithArgs("sid").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").WillReturnResult(sqlmock.NewResult(0, 3))

	if err := store.Delete(context.Background(), "sid"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	n, err := store.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if n != 3 {
		t.Errorf("Cleanup() = %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
