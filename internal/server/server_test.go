package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/index"
	"docrag/internal/usecase"
)

type stubLLM struct {
	reply string
}

func (s *stubLLM) GenerateWithSystem(_ context.Context, _, _ string) (string, error) {
	return s.reply, nil
}

func (s *stubLLM) ModelName() string { return "stub" }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	folder := t.TempDir()
	idx, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })

	emb := embedding.NewMockEmbedder(16)
	chk, err := chunker.NewCharChunker(200, 40)
	if err != nil {
		t.Fatal(err)
	}
	ingestor := usecase.NewIngestor(fs.NewWalker(nil), extract.NewExtractor(), chk, emb, idx)
	retriever := usecase.NewRetriever(emb, idx, 0)
	chat := usecase.NewChat(retriever, &stubLLM{reply: "grounded reply"}, 3)

	return New(chat, ingestor, folder), folder
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestIndexPageServed(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "docrag") {
		t.Error("index page missing expected content")
	}
}

func TestChatRejectsBadBody(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing query, got %d", w.Code)
	}
}

func TestRebuildThenChat(t *testing.T) {
	srv, folder := newTestServer(t)

	content := "the backup job runs nightly at 2am"
	if err := os.WriteFile(filepath.Join(folder, "ops.txt"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/rebuild", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var rebuildResp struct {
		FilesIndexed int `json:"files_indexed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rebuildResp); err != nil {
		t.Fatal(err)
	}
	if rebuildResp.FilesIndexed != 1 {
		t.Fatalf("expected 1 file indexed, got %d", rebuildResp.FilesIndexed)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"query":"the backup job runs nightly at 2am"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("chat: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var chatResp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &chatResp); err != nil {
		t.Fatal(err)
	}
	if chatResp.Answer != "grounded reply" {
		t.Errorf("unexpected answer %q", chatResp.Answer)
	}
	if len(chatResp.Sources) != 1 || chatResp.Sources[0] != "ops.txt" {
		t.Errorf("unexpected sources %v", chatResp.Sources)
	}
}

func TestChatOnEmptyIndexRefuses(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"query":"anything"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != usecase.NoAnswerReply {
		t.Errorf("expected the fixed no-answer reply, got %q", resp.Answer)
	}
}
