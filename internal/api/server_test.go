package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"forgeworks/macrod/internal/cache"
	"forgeworks/macrod/internal/config"
	"forgeworks/macrod/internal/pipeline"
)

const testAPIKey = "test-key"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTool(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newTestServer(t *testing.T, root string) *Server {
	t.Helper()
	cfg := &config.Config{
		ToolRoot:             root,
		MacrodAPIKey:         testAPIKey,
		WorkerCount:          2,
		MaxQueueSize:         8,
		MaxConcurrentPublish: 2,
		CacheTTL:             time.Minute,
		JobTTL:               time.Minute,
	}
	log := testLogger()
	c := cache.New(cfg.CacheTTL)
	stats := pipeline.NewStats()
	expander := pipeline.NewExpander(root, c, stats, nil)
	orch := pipeline.NewOrchestrator(cfg, log, expander, nil, stats, nil)

	ctx, cancel := context.WithCancel(context.Background())
	orch.Start(ctx)
	t.Cleanup(func() {
		cancel()
		orch.Stop()
	})

	return NewServer(cfg, log, orch, expander, c)
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthNoAuth(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d, want 200", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", rec.Code)
	}
}

func TestListTools(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "a.xml", "<tool/>")
	writeTool(t, root, "sub/b.xml", "<tool/>")
	writeTool(t, root, "notes.txt", "ignored")

	s := newTestServer(t, root)
	rec := doRequest(t, s, http.MethodGet, "/api/tools", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Tools []struct {
			Path string `json:"path"`
		} `json:"tools"`
		Count int `json:"count"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
	paths := map[string]bool{}
	for _, tool := range resp.Tools {
		paths[tool.Path] = true
	}
	if !paths["a.xml"] || !paths["sub/b.xml"] {
		t.Errorf("tools = %v", paths)
	}
}

func TestExpandEndpoint(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "tool.xml", `<tool>
  <macros>
    <token name="@VERSION@">3.0</token>
    <xml name="req"><requirement>samtools</requirement></xml>
  </macros>
  <version>@VERSION@</version>
  <expand macro="req"/>
</tool>`)

	s := newTestServer(t, root)
	rec := doRequest(t, s, http.MethodGet, "/api/tools/expand?path=tool.xml", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp expandResponse
	decodeJSON(t, rec, &resp)
	if !strings.Contains(resp.XML, "<version>3.0</version>") {
		t.Errorf("token not applied:\n%s", resp.XML)
	}
	if !strings.Contains(resp.XML, "<requirement>samtools</requirement>") {
		t.Errorf("macro not expanded:\n%s", resp.XML)
	}
	if resp.Cached {
		t.Error("first expansion reported cached")
	}

	rec = doRequest(t, s, http.MethodGet, "/api/tools/expand?path=tool.xml", "")
	decodeJSON(t, rec, &resp)
	if !resp.Cached {
		t.Error("second expansion not cached")
	}
}

func TestExpandBadPath(t *testing.T) {
	s := newTestServer(t, t.TempDir())
	rec := doRequest(t, s, http.MethodGet, "/api/tools/expand?path=missing.xml", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, "/api/tools/expand", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty path status = %d, want 400", rec.Code)
	}
}

func TestLintEndpoint(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "tool.xml", `<tool>
  <macros>
    <xml name="unused"><x/></xml>
  </macros>
  <expand macro="ghost"/>
</tool>`)

	s := newTestServer(t, root)
	rec := doRequest(t, s, http.MethodGet, "/api/tools/lint?path=tool.xml", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Issues []struct {
			Kind  string `json:"kind"`
			Macro string `json:"macro"`
		} `json:"issues"`
		Count int `json:"count"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Count < 2 {
		t.Errorf("issues = %+v, want undefined and unused", resp.Issues)
	}
}

func TestHelpEndpoint(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "tool.xml", `<tool>
  <help>**Usage**

Run the tool.</help>
</tool>`)
	writeTool(t, root, "nohelp.xml", "<tool/>")

	s := newTestServer(t, root)

	rec := doRequest(t, s, http.MethodGet, "/api/tools/help?path=tool.xml", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "**Usage**") {
		t.Errorf("raw help = %q", rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/tools/help?path=tool.xml&format=html", "")
	if !strings.Contains(rec.Body.String(), "<strong>Usage</strong>") {
		t.Errorf("html help = %q", rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/tools/help?path=tool.xml&format=text", "")
	if strings.Contains(rec.Body.String(), "<") || !strings.Contains(rec.Body.String(), "Usage") {
		t.Errorf("text help = %q", rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/tools/help?path=nohelp.xml", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("no help status = %d, want 404", rec.Code)
	}
}

func TestBatchLifecycle(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "good.xml", `<tool><macros><token name="@V@">1</token></macros><v>@V@</v></tool>`)
	writeTool(t, root, "bad.xml", `<tool><macros><xml name="x"/></macros><expand macro="ghost"/></tool>`)

	s := newTestServer(t, root)

	rec := doRequest(t, s, http.MethodPost, "/api/batch", `{"paths":["good.xml","bad.xml"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	var submitted struct {
		JobID string `json:"job_id"`
	}
	decodeJSON(t, rec, &submitted)
	if submitted.JobID == "" {
		t.Fatal("no job_id in response")
	}

	deadline := time.Now().Add(2 * time.Second)
	var status struct {
		Status   string `json:"status"`
		Progress struct {
			DocsProcessed int      `json:"docs_processed"`
			Errors        []string `json:"errors"`
		} `json:"progress"`
	}
	for {
		rec = doRequest(t, s, http.MethodGet, "/api/batch/"+submitted.JobID+"/status", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status endpoint = %d", rec.Code)
		}
		decodeJSON(t, rec, &status)
		if status.Status == "completed" || status.Status == "partial" || status.Status == "failed" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %q", status.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if status.Status != "partial" {
		t.Errorf("status = %q, want partial", status.Status)
	}
	if status.Progress.DocsProcessed != 2 {
		t.Errorf("processed = %d, want 2", status.Progress.DocsProcessed)
	}
	if len(status.Progress.Errors) != 1 {
		t.Errorf("errors = %v, want one", status.Progress.Errors)
	}
}

func TestBatchValidation(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	rec := doRequest(t, s, http.MethodPost, "/api/batch", "not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body = %d, want 400", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/batch", `{"paths":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty paths = %d, want 400", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/batch/unknown/status", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job = %d, want 404", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "tool.xml", "<tool/>")

	s := newTestServer(t, root)
	doRequest(t, s, http.MethodGet, "/api/tools/expand?path=tool.xml", "")

	rec := doRequest(t, s, http.MethodGet, "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Expansion struct {
			TotalExpansions int `json:"total_expansions"`
		} `json:"expansion"`
		CachedEntries int `json:"cached_entries"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Expansion.TotalExpansions != 1 {
		t.Errorf("expansions = %d, want 1", resp.Expansion.TotalExpansions)
	}
	if resp.CachedEntries != 1 {
		t.Errorf("cached = %d, want 1", resp.CachedEntries)
	}
}
