package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themacmarketer/llm-council/internal/config"
	"github.com/themacmarketer/llm-council/internal/council"
	"github.com/themacmarketer/llm-council/internal/storage"
	"github.com/themacmarketer/llm-council/internal/webfetch"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// scriptedClient answers each call class with a fixed canned response.
type scriptedClient struct{}

func (scriptedClient) Invoke(ctx context.Context, model, prompt string, timeout time.Duration) council.ModelResponse {
	var content string
	switch {
	case strings.Contains(prompt, "evaluating different responses"):
		content = "FINAL RANKING:\n1. Response A\n2. Response B"
	case strings.Contains(prompt, "Chairman of an LLM Council"):
		content = "the final synthesis"
	case strings.Contains(prompt, "very short title"):
		content = "Generated Title"
	default:
		content = "answer from " + model
	}
	return council.ModelResponse{Model: model, Content: content, Succeeded: true}
}

func newTestServer(t *testing.T) *Server {
	cfg := config.Config{
		CouncilModels:      []string{"m/a", "m/b"},
		ChairmanModel:      "m/chair",
		DataDir:            t.TempDir(),
		Port:               0,
		MaxRequestBodySize: 1 << 20,
		ModelQueryTimeout:  time.Second,
		TitleGenTimeout:    time.Second,
		FetchCacheTTL:      time.Minute,
	}
	pipeline := council.New(council.Config{
		CouncilModels: cfg.CouncilModels,
		ChairmanModel: cfg.ChairmanModel,
		QueryTimeout:  cfg.ModelQueryTimeout,
		TitleTimeout:  cfg.TitleGenTimeout,
	}, scriptedClient{}, zerolog.Nop())
	store := storage.NewStore(cfg.DataDir, zerolog.Nop())
	fetcher := webfetch.NewFetcher(cfg.FetchCacheTTL, zerolog.Nop())
	return New(cfg, pipeline, store, fetcher, zerolog.Nop())
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router := newTestServer(t).Router()

	w := doJSON(router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestConversationLifecycle(t *testing.T) {
	router := newTestServer(t).Router()

	w := doJSON(router, http.MethodPost, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var created storage.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "New Conversation", created.Title)

	w = doJSON(router, http.MethodGet, "/api/conversations/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []storage.ConversationMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestGetConversationNotFound(t *testing.T) {
	router := newTestServer(t).Router()

	w := doJSON(router, http.MethodGet, "/api/conversations/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessage(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	// Seed a prior exchange so the title side channel stays quiet and the
	// pipeline receives history.
	conv, err := srv.store.Create("conv-1")
	require.NoError(t, err)
	require.NoError(t, srv.store.AppendUserMessage(conv.ID, "earlier question"))
	require.NoError(t, srv.store.AppendAssistantMessage(conv.ID, storage.Message{
		Role:   "assistant",
		Stage3: &storage.SynthesisRecord{Model: "m/chair", Response: "earlier answer"},
	}))

	w := doJSON(router, http.MethodPost, "/api/conversations/conv-1/message", SendMessageRequest{Content: "What is Go?"})
	require.Equal(t, http.StatusOK, w.Code)

	var result council.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Stage1, 2)
	assert.Equal(t, "answer from m/a", result.Stage1[0].Content)
	assert.Equal(t, "the final synthesis", result.Stage3.Response)
	assert.Len(t, result.Metadata.LabelToModel, 2)

	loaded, err := srv.store.Get("conv-1")
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 4)
	last := loaded.Messages[3]
	assert.Equal(t, "assistant", last.Role)
	require.NotNil(t, last.Stage3)
	assert.Equal(t, "the final synthesis", last.Stage3.Response)
}

func TestSendMessageValidation(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	_, err := srv.store.Create("conv-1")
	require.NoError(t, err)

	w := doJSON(router, http.MethodPost, "/api/conversations/conv-1/message", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/conversations/missing/message", SendMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessageStream(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()
	_, err := srv.store.Create("conv-1")
	require.NoError(t, err)

	w := doJSON(router, http.MethodPost, "/api/conversations/conv-1/message/stream", SendMessageRequest{Content: "What is Go?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := parseSSE(t, w.Body.String())
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}

	// No research model configured, so the stream opens with stage 1. The
	// title arrives right before the terminal event on a first message.
	assert.Equal(t, []string{
		"stage1_start", "stage1_complete",
		"stage2_start", "stage2_complete",
		"stage3_start", "stage3_complete",
		"title_complete", "complete",
	}, types)

	loaded, err := srv.store.Get("conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Generated Title", loaded.Title)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "assistant", loaded.Messages[1].Role)
}

func TestFetchURLValidation(t *testing.T) {
	router := newTestServer(t).Router()

	w := doJSON(router, http.MethodPost, "/api/fetch-url", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/fetch-url", map[string]string{"url": "ftp://example.com"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAllowOrigin(t *testing.T) {
	srv := newTestServer(t)

	// Development mode: no configured origins, localhost only.
	assert.True(t, srv.allowOrigin("http://localhost:5173"))
	assert.True(t, srv.allowOrigin("http://127.0.0.1:3000"))
	assert.False(t, srv.allowOrigin("https://evil.example.com"))

	srv.cfg.CORSAllowedOrigins = []string{"https://app.example.com"}
	assert.True(t, srv.allowOrigin("https://app.example.com"))
	assert.False(t, srv.allowOrigin("http://localhost:5173"))
}

type sseEvent struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	Metadata json.RawMessage `json:"metadata"`
	Message  string          `json:"message"`
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev sseEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}
