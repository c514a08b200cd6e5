// Package retrieval adapts the external retrieval engine: per-organization
// query instances, the closed query-mode set, and parsing of the metadata
// headers embedded in engine context strings.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kildespor/kildespor/config"
	"github.com/kildespor/kildespor/models"
)

// Mode selects the engine's retrieval strategy. Vector mode preserves
// segment metadata headers at accurate positions and is used for source
// extraction; mix mode adds knowledge-graph retrieval and produces better
// synthesized answers.
type Mode string

const (
	ModeVector Mode = "naive"
	ModeMix    Mode = "mix"
)

// QueryRequest describes one engine call.
type QueryRequest struct {
	Query       string
	Mode        Mode
	TopK        int
	History     []models.HistoryEntry
	ContextOnly bool
	UserPrompt  string
}

// Instance is the per-organization handle onto the engine. One instance per
// organization keeps workspaces isolated on the engine side.
type Instance struct {
	workspace string
	baseURL   string
	apiKey    string
	http      *http.Client
}

type queryPayload struct {
	Workspace       string                `json:"workspace"`
	Query           string                `json:"query"`
	Mode            string                `json:"mode"`
	TopK            int                   `json:"top_k,omitempty"`
	History         []models.HistoryEntry `json:"conversation_history,omitempty"`
	OnlyNeedContext bool                  `json:"only_need_context"`
	UserPrompt      string                `json:"user_prompt,omitempty"`
}

type queryResponse struct {
	Response string `json:"response"`
}

// Query runs one retrieval call and returns the raw engine text: either a
// context string with embedded metadata headers or a synthesized answer.
func (ins *Instance) Query(ctx context.Context, req QueryRequest) (string, error) {
	payload := queryPayload{
		Workspace:       ins.workspace,
		Query:           req.Query,
		Mode:            string(req.Mode),
		TopK:            req.TopK,
		History:         req.History,
		OnlyNeedContext: req.ContextOnly,
		UserPrompt:      req.UserPrompt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ins.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build query request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if ins.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+ins.apiKey)
	}

	resp, err := ins.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("engine query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("engine query returned %d: %s", resp.StatusCode, string(b))
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode engine response: %w", err)
	}
	return out.Response, nil
}

// Insert pushes header-tagged transcript text into the organization's
// workspace for entity extraction and indexing.
func (ins *Instance) Insert(ctx context.Context, docID, text string) error {
	payload := map[string]string{"workspace": ins.workspace, "id": docID, "text": text}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ins.baseURL+"/documents", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if ins.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+ins.apiKey)
	}
	resp, err := ins.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("engine insert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("engine insert returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// DeleteDocument removes a previously inserted document from the workspace.
func (ins *Instance) DeleteDocument(ctx context.Context, docID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/documents/%s?workspace=%s", ins.baseURL, docID, ins.workspace), nil)
	if err != nil {
		return err
	}
	if ins.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+ins.apiKey)
	}
	resp, err := ins.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("engine delete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("engine delete returned %d", resp.StatusCode)
	}
	return nil
}

func newInstance(cfg config.EngineConfig, orgID string) *Instance {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Instance{
		workspace: "org_" + orgID,
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		http:      &http.Client{Timeout: timeout},
	}
}
