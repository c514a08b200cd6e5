package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kildespor/kildespor/config"
)

func TestQuerySendsWorkspaceAndMode(t *testing.T) {
	var got queryPayload
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sekrit" {
			t.Errorf("authorization: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "kontekst"})
	}))
	defer ts.Close()

	reg := NewRegistry(config.EngineConfig{BaseURL: ts.URL, APIKey: "sekrit"}, nil)
	ins, err := reg.Instance("org-1")
	if err != nil {
		t.Fatalf("instance: %v", err)
	}
	resp, err := ins.Query(context.Background(), QueryRequest{
		Query: "hva skjer", Mode: ModeVector, TopK: 10, ContextOnly: true,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if resp != "kontekst" {
		t.Fatalf("response: %q", resp)
	}
	if got.Workspace != "org_org-1" {
		t.Fatalf("workspace: %q", got.Workspace)
	}
	if got.Mode != "naive" || !got.OnlyNeedContext || got.TopK != 10 {
		t.Fatalf("payload: %+v", got)
	}
}

func TestQueryNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workspace unavailable", http.StatusBadGateway)
	}))
	defer ts.Close()

	reg := NewRegistry(config.EngineConfig{BaseURL: ts.URL}, nil)
	ins, _ := reg.Instance("org-1")
	if _, err := ins.Query(context.Background(), QueryRequest{Query: "x", Mode: ModeMix}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestRegistryReusesInstances(t *testing.T) {
	reg := NewRegistry(config.EngineConfig{BaseURL: "http://engine"}, nil)
	a, err := reg.Instance("org-1")
	if err != nil {
		t.Fatalf("instance: %v", err)
	}
	b, _ := reg.Instance("org-1")
	if a != b {
		t.Fatal("same organization must share one instance")
	}
	c, _ := reg.Instance("org-2")
	if a == c {
		t.Fatal("organizations must not share instances")
	}
}

func TestRegistryShutdown(t *testing.T) {
	reg := NewRegistry(config.EngineConfig{BaseURL: "http://engine"}, nil)
	if _, err := reg.Instance("org-1"); err != nil {
		t.Fatalf("instance: %v", err)
	}
	reg.Shutdown()
	if _, err := reg.Instance("org-1"); err != ErrClosed {
		t.Fatalf("expected ErrClosed after shutdown, got %v", err)
	}
}
