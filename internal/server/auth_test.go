package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

func TestSignupRejectsShortPassword(t *testing.T) {
	st, _ := mockStore(t)
	h := &AuthHandler{Store: st}
	c, _ := newJSONContext(http.MethodPost, "/api/auth/signup",
		`{"email":"a@b.no","password":"short","organization_name":"Acme"}`)
	err := h.signup(c)
	if httpStatus(t, err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestSignupFoundsOrganization(t *testing.T) {
	st, mock := mockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO organizations (name) VALUES ($1) RETURNING id`)).
		WithArgs("Acme").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("org-9"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (email, password_hash, organization_id, role)`)).
		WithArgs("a@b.no", sqlmock.AnyArg(), "org-9", "org_admin").
		WillReturnResult(sqlmock.NewResult(1, 1))

	h := &AuthHandler{Store: st}
	c, rec := newJSONContext(http.MethodPost, "/api/auth/signup",
		`{"email":"a@b.no","password":"longenough","organization_name":"Acme"}`)
	if err := h.signup(c); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestSignupJoinsExistingOrganizationAsUser(t *testing.T) {
	st, mock := mockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (email, password_hash, organization_id, role)`)).
		WithArgs("a@b.no", sqlmock.AnyArg(), "org-1", "user").
		WillReturnResult(sqlmock.NewResult(1, 1))

	h := &AuthHandler{Store: st}
	c, rec := newJSONContext(http.MethodPost, "/api/auth/signup",
		`{"email":"a@b.no","password":"longenough","organization_id":"org-1"}`)
	if err := h.signup(c); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	st, mock := mockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("a@b.no", sqlmock.AnyArg(), "org-1", "user").
		WillReturnError(&pq.Error{Code: "23505"})

	h := &AuthHandler{Store: st}
	c, _ := newJSONContext(http.MethodPost, "/api/auth/signup",
		`{"email":"a@b.no","password":"longenough","organization_id":"org-1"}`)
	err := h.signup(c)
	if httpStatus(t, err) != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	st, mock := mockStore(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correcthorse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash FROM users WHERE email=$1`)).
		WithArgs("a@b.no").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("u-1", string(hash)))

	h := &AuthHandler{Store: st, Secret: []byte("test-secret")}
	c, rec := newJSONContext(http.MethodPost, "/api/auth/login",
		`{"email":"a@b.no","password":"correcthorse"}`)
	if err := h.login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("expected token in body, got %q (%v)", rec.Body.String(), err)
	}
	cookies := rec.Result().Cookies()
	found := false
	for _, ck := range cookies {
		if ck.Name == "auth" && ck.Value == resp.Token && ck.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected httponly auth cookie, got %+v", cookies)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	st, mock := mockStore(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correcthorse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash FROM users WHERE email=$1`)).
		WithArgs("a@b.no").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("u-1", string(hash)))

	h := &AuthHandler{Store: st, Secret: []byte("test-secret")}
	c, _ := newJSONContext(http.MethodPost, "/api/auth/login",
		`{"email":"a@b.no","password":"wrongwrongwrong"}`)
	if httpStatus(t, h.login(c)) != http.StatusUnauthorized {
		t.Fatal("wrong password must yield 401")
	}
}

func TestLogoutExpiresCookie(t *testing.T) {
	st, _ := mockStore(t)
	h := &AuthHandler{Store: st}
	c, rec := newJSONContext(http.MethodPost, "/api/auth/logout", "")
	if err := h.logout(c); err != nil {
		t.Fatalf("logout: %v", err)
	}
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "auth" && ck.MaxAge < 0 {
			return
		}
	}
	t.Fatal("expected expired auth cookie")
}
