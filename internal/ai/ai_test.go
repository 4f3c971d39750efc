package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	genai "google.golang.org/genai"
)

func TestParseScan(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ScanResult
	}{
		{
			name: "clean json",
			in:   `{"has_problem":true,"problem_content":"Solve x+1=2","has_prompts":true,"detected_prompts":["Explain step by step"]}`,
			want: ScanResult{HasProblem: true, ProblemContent: "Solve x+1=2", HasPrompts: true, DetectedPrompts: []string{"Explain step by step"}},
		},
		{
			name: "fenced json",
			in:   "```json\n{\"has_problem\":true,\"problem_content\":\"Q1\",\"has_prompts\":false,\"detected_prompts\":[]}\n```",
			want: ScanResult{HasProblem: true, ProblemContent: "Q1", DetectedPrompts: []string{}},
		},
		{
			name: "json inside prose",
			in:   `Here you go: {"has_problem":false,"problem_content":"","has_prompts":true,"detected_prompts":["act as {tutor}"]} hope it helps`,
			want: ScanResult{HasPrompts: true, DetectedPrompts: []string{"act as {tutor}"}},
		},
		{
			name: "not json",
			in:   "Chapter 3 exercise: prove the lemma",
			want: ScanResult{HasProblem: true, ProblemContent: "Chapter 3 exercise: prove the lemma", DetectedPrompts: []string{}},
		},
		{
			name: "neither bucket flagged",
			in:   `{"has_problem":false,"problem_content":"mixed text","has_prompts":false,"detected_prompts":["p1"]}`,
			want: ScanResult{HasProblem: true, ProblemContent: "mixed text\np1", DetectedPrompts: []string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseScan(tt.in))
		})
	}
}

func TestFindFirstJSONSkipsBracesInStrings(t *testing.T) {
	s := `x {"a":"}{","b":{"c":1}} y {"z":2}`
	assert.Equal(t, `{"a":"}{","b":{"c":1}}`, findFirstJSON(s))
	assert.Equal(t, "", findFirstJSON("no object"))
}

func TestUpstreamTranslation(t *testing.T) {
	var ue *UpstreamError

	err := upstream(genai.APIError{Code: 429, Message: "quota"})
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 429, ue.Status)
	assert.Equal(t, "quota", ue.Message)

	err = upstream(&genai.APIError{Code: 0, Message: "odd"})
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 500, ue.Status)

	plain := errors.New("dial tcp: refused")
	assert.Same(t, plain, upstream(plain))
	assert.NoError(t, upstream(nil))
}

type geminiCall struct {
	path string
	key  string
	body map[string]any
}

func geminiServer(t *testing.T, status int, reply string, calls *[]geminiCall) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(b, &body)
		*calls = append(*calls, geminiCall{path: r.URL.Path, key: r.Header.Get("x-goog-api-key"), body: body})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestGemini(t *testing.T, srv *httptest.Server) *Gemini {
	t.Helper()
	g, err := NewGeminiWithConfig(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  srv.Client(),
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	}, "")
	require.NoError(t, err)
	return g
}

const okReply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"%s"}]},"finishReason":"STOP"}]}`

func reply(text string) string { return strings.Replace(okReply, "%s", text, 1) }

func TestGeminiComplete(t *testing.T) {
	var calls []geminiCall
	srv := geminiServer(t, http.StatusOK, reply("Photosynthesis converts light."), &calls)
	g := newTestGemini(t, srv)

	out, err := g.Complete(context.Background(), "what is photosynthesis", 0.7)
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis converts light.", out)

	require.Len(t, calls, 1)
	assert.True(t, strings.HasSuffix(calls[0].path, "models/"+DefaultGeminiModel+":generateContent"))
	assert.Equal(t, "test-key", calls[0].key)
	gc, _ := calls[0].body["generationConfig"].(map[string]any)
	assert.InDelta(t, 0.7, gc["temperature"], 1e-6)
}

func TestGeminiScanImageConstrainsOutput(t *testing.T) {
	var calls []geminiCall
	srv := geminiServer(t, http.StatusOK, reply(`{\"has_problem\":true}`), &calls)
	g := newTestGemini(t, srv)

	res, err := g.ScanImage(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, `{"has_problem":true}`, res.Text())

	require.Len(t, calls, 1)
	gc, _ := calls[0].body["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", gc["responseMimeType"])
	assert.NotNil(t, gc["responseSchema"])

	contents, _ := calls[0].body["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Len(t, parts, 2, "prompt plus inline image")
}

func TestGeminiRefineSendsNoImage(t *testing.T) {
	var calls []geminiCall
	srv := geminiServer(t, http.StatusOK, reply("Polished prompt"), &calls)
	g := newTestGemini(t, srv)

	out, err := g.Refine(context.Background(), "make quiz")
	require.NoError(t, err)
	assert.Equal(t, "Polished prompt", out)

	contents, _ := calls[0].body["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 1)
	assert.Contains(t, parts[0].(map[string]any)["text"], "make quiz")
}

func TestGeminiUpstreamError(t *testing.T) {
	var calls []geminiCall
	srv := geminiServer(t, http.StatusForbidden, `{"error":{"code":403,"message":"API key invalid","status":"PERMISSION_DENIED"}}`, &calls)
	g := newTestGemini(t, srv)

	_, err := g.Complete(context.Background(), "hi", 0.7)
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusForbidden, ue.Status)
	assert.Equal(t, "API key invalid", ue.Message)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenAIComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"resp_1","object":"response","status":"completed","output":[{"type":"message","id":"msg_1","role":"assistant","status":"completed","content":[{"type":"output_text","text":"Hello learner","annotations":[]}]}]}`)
	}))
	defer srv.Close()

	o, err := NewOpenAI("sk-test", "", option.WithBaseURL(srv.URL), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	out, err := o.Complete(context.Background(), "greet me", 0.3)
	require.NoError(t, err)
	assert.Equal(t, "Hello learner", out)
	assert.Equal(t, DefaultOpenAIModel, body["model"])
	assert.Equal(t, "greet me", body["input"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)
}

func TestOpenAIUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error","param":"model","code":"model_not_found"}}`)
	}))
	defer srv.Close()

	o, err := NewOpenAI("sk-test", "nope", option.WithBaseURL(srv.URL), option.WithHTTPClient(srv.Client()), option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = o.Refine(context.Background(), "x")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadRequest, ue.Status)
}
