package server

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/kildespor/kildespor/internal/store"
)

func mockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return &store.Store{DB: db}, mock
}

// newJSONContext builds an echo context for a handler call with an
// authenticated user already on it.
func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", "u-1")
	return c, rec
}

func expectUser(mock sqlmock.Sqlmock, role string) {
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, email, organization_id, role, created_at FROM users WHERE id=$1`)).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "organization_id", "role", "created_at"}).
			AddRow("u-1", "user@example.com", "org-1", role, time.Now()))
}

func videoRow(id, org, level string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "organization_id", "uploaded_by",
		"security_level", "status", "duration", "created_at",
	}).AddRow(id, "Allmøte", "", org, "uploader", level, "completed", 60.0, time.Now())
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	return he.Code
}
