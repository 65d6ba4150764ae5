package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/doctree"
	"github.com/dgallion1/docqa/internal/embedder"
	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/session"
)

const testKey = "test-key"

type fakeChat struct {
	prompts []string
}

func (f *fakeChat) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return "the answer", nil
}

func (f *fakeChat) Model() string { return "fake-model" }

type testEnv struct {
	srv  *Server
	chat *fakeChat
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		APIKey:           testKey,
		MaxUploadBytes:   1 << 20,
		DefaultStrategy:  "words",
		DefaultChunkSize: 5,
		RetrievalK:       2,
	}
	sessions := session.NewStore(time.Hour, embedder.NewLocal(64), log)
	orch := pipeline.NewOrchestrator(pipeline.Options{WorkerCount: 1, MaxQueueSize: 8}, sessions, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	chat := &fakeChat{}
	stats := llm.NewLLMStats(time.Minute)
	stats.Record(120)
	return &testEnv{srv: NewServer(orch, sessions, chat, stats, log, cfg), chat: chat}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(data)
	}
	return e.do(t, method, path, body, "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func uploadBody(t *testing.T, filename, content string, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.doJSON(t, http.MethodPost, "/api/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body)
	}
	return decode[session.Snapshot](t, rec).ID
}

func (e *testEnv) ingest(t *testing.T, sessionID, filename, content string) pipeline.JobSnapshot {
	t.Helper()
	body, ct := uploadBody(t, filename, content, nil)
	rec := e.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/documents", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ingest: %d %s", rec.Code, rec.Body)
	}
	jobID := decode[map[string]any](t, rec)["job_id"].(string)

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := e.do(t, http.MethodGet, "/api/ingest/"+jobID+"/status", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status: %d %s", rec.Code, rec.Body)
		}
		snap := decode[pipeline.JobSnapshot](t, rec)
		if snap.Done() {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s did not finish: %+v", jobID, snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthAndAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}
}

const policyText = "Refunds are issued within five days.\n\nShipping takes two weeks overseas.\n\nContact support by email."

func TestIngestSearchAsk(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	base := "/api/sessions/" + id

	snap := env.ingest(t, id, "policy.txt", policyText)
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed job, got %+v", snap)
	}
	if snap.Progress.TotalChunks != 3 || !snap.Progress.Indexed {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}

	rec := env.do(t, http.MethodGet, base+"/chunks", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("chunks: %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "policy.chunks.json") {
		t.Errorf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	chunks := decode[[]doctree.Chunk](t, rec)
	if len(chunks) != 3 || chunks[0].Section != doctree.LabelFull || chunks[0].Text != "Refunds are issued within five" {
		t.Errorf("unexpected chunks %+v", chunks)
	}

	rec = env.doJSON(t, http.MethodPost, base+"/search", searchRequest{Query: "shipping weeks", Mode: "lexical", K: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("lexical search: %d %s", rec.Code, rec.Body)
	}
	lex := decode[struct {
		Mode    string `json:"mode"`
		Results []hit  `json:"results"`
	}](t, rec)
	if len(lex.Results) != 1 || !strings.Contains(lex.Results[0].Text, "Shipping") || lex.Results[0].Score == nil {
		t.Errorf("unexpected lexical results %+v", lex.Results)
	}

	rec = env.doJSON(t, http.MethodPost, base+"/search", searchRequest{Query: "refunds issued"})
	if rec.Code != http.StatusOK {
		t.Fatalf("default search: %d %s", rec.Code, rec.Body)
	}
	emb := decode[struct {
		Mode    string `json:"mode"`
		Results []hit  `json:"results"`
	}](t, rec)
	if emb.Mode != session.ModeEmbedding || len(emb.Results) != 2 || emb.Results[0].Distance == nil {
		t.Errorf("unexpected embedding results %+v", emb)
	}

	rec = env.do(t, http.MethodGet, base+"/matches?q=SUPPORT", nil, "")
	matches := decode[map[string]any](t, rec)
	if matches["count"].(float64) != 1 {
		t.Errorf("expected one match, got %v", matches)
	}

	rec = env.doJSON(t, http.MethodPost, base+"/ask", askRequest{Question: "How long do refunds take?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("ask: %d %s", rec.Code, rec.Body)
	}
	ans := decode[session.Answer](t, rec)
	if ans.Answer != "the answer" || ans.Mode != session.ModeEmbedding || len(ans.Contexts) != 2 {
		t.Errorf("unexpected answer %+v", ans)
	}
	if len(env.chat.prompts) != 1 || !strings.Contains(env.chat.prompts[0], "How long do refunds take?") {
		t.Errorf("unexpected prompts %q", env.chat.prompts)
	}

	rec = env.do(t, http.MethodGet, base+"/history.txt", nil, "")
	if !strings.Contains(rec.Body.String(), "User: How long do refunds take?\nBot: the answer\n") {
		t.Errorf("unexpected history text %q", rec.Body.String())
	}

	rec = env.do(t, http.MethodDelete, base+"/history", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("clear history: %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, base+"/history", nil, "")
	if msgs := decode[map[string][]session.Message](t, rec)["messages"]; len(msgs) != 0 {
		t.Errorf("expected empty history, got %d", len(msgs))
	}

	rec = env.do(t, http.MethodGet, base+"/files", nil, "")
	files := decode[map[string][]session.FileInfo](t, rec)["files"]
	if len(files) != 1 || files[0].Name != "policy.txt" || files[0].Kind != "text" || files[0].Chunks != 3 {
		t.Errorf("unexpected files %+v", files)
	}
}

func TestIngest_Rejections(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	path := "/api/sessions/" + id + "/documents"

	tests := []struct {
		name     string
		filename string
		fields   map[string]string
	}{
		{"unsupported type", "virus.exe", nil},
		{"overlap not below size", "a.txt", map[string]string{"strategy": "chars", "chunk_size": "10", "overlap": "10"}},
		{"non-positive size", "a.txt", map[string]string{"chunk_size": "0"}},
		{"unknown strategy", "a.txt", map[string]string{"strategy": "sentences"}},
		{"non-integer size", "a.txt", map[string]string{"chunk_size": "ten"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := uploadBody(t, tt.filename, "content", tt.fields)
			rec := env.do(t, http.MethodPost, path, body, ct)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestSearch_Errors(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	base := "/api/sessions/" + id

	rec := env.doJSON(t, http.MethodPost, base+"/search", searchRequest{Query: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank query: expected 400, got %d", rec.Code)
	}
	rec = env.doJSON(t, http.MethodPost, base+"/search", searchRequest{Query: "x", Mode: "embedding"})
	if rec.Code != http.StatusConflict {
		t.Errorf("no index: expected 409, got %d", rec.Code)
	}
	rec = env.doJSON(t, http.MethodPost, base+"/search", searchRequest{Query: "x", Mode: "fuzzy"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad mode: expected 400, got %d", rec.Code)
	}
	rec = env.doJSON(t, http.MethodPost, base+"/search", searchRequest{Query: "x"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("empty session: expected empty lexical results, got %d %s", rec.Code, rec.Body)
	}
	rec = env.doJSON(t, http.MethodPost, base+"/ask", askRequest{Question: ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty question: expected 400, got %d", rec.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/sessions", nil, "")
	list := decode[map[string][]session.Snapshot](t, rec)["sessions"]
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("unexpected session list %+v", list)
	}

	rec = env.do(t, http.MethodDelete, "/api/sessions/"+id, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/ingest/nope/status", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job: expected 404, got %d", rec.Code)
	}
}

func TestLLMStats(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/stats/llm", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["model"] != "fake-model" {
		t.Errorf("unexpected model %v", body["model"])
	}
}
