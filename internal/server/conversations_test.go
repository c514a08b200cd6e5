package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kildespor/kildespor/models"
)

func TestListConversationsDefaultsLimit(t *testing.T) {
	st, mock := mockStore(t)
	expectUser(mock, "user")
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations c
WHERE c.user_id=$1 AND c.organization_id=$2`)).
		WithArgs("u-1", "org-1", 0, 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "organization_id", "title", "created_at", "updated_at", "count",
		}).AddRow("conv-1", "u-1", "org-1", "hva skjer?", now, now, 4))

	h := &ConversationsHandler{Store: st}
	c, rec := newJSONContext(http.MethodGet, "/api/conversations", "")
	if err := h.list(c); err != nil {
		t.Fatalf("list: %v", err)
	}
	var convs []models.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &convs); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(convs) != 1 || convs[0].MessageCount != 4 {
		t.Fatalf("conversations: %+v", convs)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	st, mock := mockStore(t)
	expectUser(mock, "user")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations
WHERE id=$1 AND user_id=$2 AND organization_id=$3`)).
		WithArgs("conv-9", "u-1", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "organization_id", "title", "created_at", "updated_at"}))

	h := &ConversationsHandler{Store: st}
	c, _ := newJSONContext(http.MethodGet, "/api/conversations/conv-9", "")
	c.SetParamNames("id")
	c.SetParamValues("conv-9")
	if httpStatus(t, h.get(c)) != http.StatusNotFound {
		t.Fatal("foreign conversation must 404")
	}
}

func TestDeleteConversation(t *testing.T) {
	st, mock := mockStore(t)
	expectUser(mock, "user")
	mock.ExpectExec(regexp.QuoteMeta(
		`DELETE FROM conversations WHERE id=$1 AND user_id=$2 AND organization_id=$3`)).
		WithArgs("conv-1", "u-1", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	h := &ConversationsHandler{Store: st}
	c, rec := newJSONContext(http.MethodDelete, "/api/conversations/conv-1", "")
	c.SetParamNames("id")
	c.SetParamValues("conv-1")
	if err := h.delete(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}
