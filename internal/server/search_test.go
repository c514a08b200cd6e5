package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kildespor/kildespor/config"
	"github.com/kildespor/kildespor/internal/access"
	"github.com/kildespor/kildespor/internal/retrieval"
	"github.com/kildespor/kildespor/internal/searchindex"
	"github.com/kildespor/kildespor/models"
)

func TestSearchRequiresQuery(t *testing.T) {
	st, _ := mockStore(t)
	h := &SearchHandler{Store: st, Access: access.NewFilter(st), Index: searchindex.NewManager(nil)}
	c, _ := newJSONContext(http.MethodGet, "/api/search", "")
	if httpStatus(t, h.search(c)) != http.StatusBadRequest {
		t.Fatal("missing q must yield 400")
	}
}

func TestSearchAttachesVideoAndFiltersAccess(t *testing.T) {
	st, mock := mockStore(t)
	index := searchindex.NewManager(nil)
	err := index.IndexSegments("org-1", []models.Segment{
		{ID: "s-1", VideoID: "vid-open", StartTime: 12, Text: "budsjettet ble lagt frem"},
		{ID: "s-2", VideoID: "vid-secret", StartTime: 30, Text: "budsjettet for oppkjøpet"},
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	// Hit order depends on index scoring, so expectations are unordered and
	// keyed by argument. The secret video resolves but stays hidden.
	mock.MatchExpectationsInOrder(false)
	expectUser(mock, "user")
	mock.ExpectQuery(regexp.QuoteMeta(`FROM videos WHERE id=$1`)).
		WithArgs("vid-open").
		WillReturnRows(videoRow("vid-open", "org-1", "internal"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM video_access_permissions`)).
		WithArgs("vid-open", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM videos WHERE id=$1`)).
		WithArgs("vid-secret").
		WillReturnRows(videoRow("vid-secret", "org-1", "secret"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1 FROM video_access_permissions`)).
		WithArgs("vid-secret", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	h := &SearchHandler{Store: st, Access: access.NewFilter(st), Index: index}
	c, rec := newJSONContext(http.MethodGet, "/api/search?q=budsjettet", "")
	if err := h.search(c); err != nil {
		t.Fatalf("search: %v", err)
	}

	var out []SearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected only the viewable hit, got %+v", out)
	}
	if out[0].VideoID != "vid-open" || out[0].URL != "/videos/vid-open?t=12" {
		t.Fatalf("result: %+v", out[0])
	}
}

func TestAnswerValidatesPayload(t *testing.T) {
	st, _ := mockStore(t)
	h := &SearchHandler{Store: st}

	c, _ := newJSONContext(http.MethodPost, "/api/search/answer", `{"query":""}`)
	if httpStatus(t, h.answer(c)) != http.StatusBadRequest {
		t.Fatal("empty query must yield 400")
	}

	c, _ = newJSONContext(http.MethodPost, "/api/search/answer", `{"query":"x","mode":"hybrid"}`)
	if httpStatus(t, h.answer(c)) != http.StatusBadRequest {
		t.Fatal("unknown mode must yield 400")
	}
}

func TestAnswerQueriesEngineWorkspace(t *testing.T) {
	var got struct {
		Workspace string `json:"workspace"`
		Mode      string `json:"mode"`
		TopK      int    `json:"top_k"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "Budsjettet ble lagt frem i mars."})
	}))
	defer ts.Close()

	st, mock := mockStore(t)
	expectUser(mock, "user")
	reg := retrieval.NewRegistry(config.EngineConfig{BaseURL: ts.URL}, nil)
	defer reg.Shutdown()

	h := &SearchHandler{Store: st, Registry: reg, TopK: 5}
	c, rec := newJSONContext(http.MethodPost, "/api/search/answer", `{"query":"hva med budsjettet?"}`)
	if err := h.answer(c); err != nil {
		t.Fatalf("answer: %v", err)
	}

	var out AnswerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("body: %v", err)
	}
	if out.Answer != "Budsjettet ble lagt frem i mars." {
		t.Fatalf("answer: %q", out.Answer)
	}
	if got.Workspace != "org_org-1" || got.Mode != "mix" || got.TopK != 5 {
		t.Fatalf("engine payload: %+v", got)
	}
}
