package explain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyhabit/internal/config"
	"pyhabit/internal/models"
)

type fakeProvider struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.reply(prompt)
}

func TestEnrichSkipsSystemFindingsAndKeepsOrder(t *testing.T) {
	provider := &fakeProvider{reply: func(prompt string) (string, error) {
		return "Explanation: It breaks.\n\nFix:\nBEFORE:\nx\nAFTER:\ny", nil
	}}
	e := NewEnricher(provider, 2, 0)

	in := []models.Finding{
		{Line: 1, Message: "loop", Category: models.CategoryFatalError, Source: models.SourceAST},
		models.SystemFinding("Error running pylint: not found"),
		{Line: 2, Message: "undefined", Category: models.CategoryRuntimeError, Source: models.SourcePylint},
	}
	out := e.Enrich(context.Background(), in, []byte("while True:\n    pass\n"))

	require.Len(t, out, 3)
	assert.Equal(t, "loop", out[0].Message)
	assert.Equal(t, "It breaks.", out[0].Explanation)
	assert.Equal(t, "BEFORE:\nx\nAFTER:\ny", out[0].Fix)
	assert.Empty(t, out[1].Explanation)
	assert.Equal(t, "It breaks.", out[2].Explanation)
	assert.Len(t, provider.prompts, 2)

	// The input slice is left untouched.
	assert.Empty(t, in[0].Explanation)
}

func TestEnrichFailureIsPerFinding(t *testing.T) {
	provider := &fakeProvider{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Issue Message: bad") {
			return "", errors.New("upstream 500")
		}
		return "Explanation: fine", nil
	}}
	out := NewEnricher(provider, 4, 0).Enrich(context.Background(), []models.Finding{
		{Line: 1, Message: "bad", Source: models.SourceAST},
		{Line: 2, Message: "good", Source: models.SourceAST},
	}, nil)

	assert.Equal(t, "Failed to generate explanation.", out[0].Explanation)
	assert.Empty(t, out[0].Fix)
	assert.Equal(t, "fine", out[1].Explanation)
	assert.Empty(t, out[1].Fix)
}

func TestEnrichRespectsConcurrencyLimit(t *testing.T) {
	provider := &fakeProvider{reply: func(string) (string, error) { return "Explanation: ok", nil }}
	findings := make([]models.Finding, 12)
	for i := range findings {
		findings[i] = models.Finding{Line: i + 1, Source: models.SourceAST}
	}

	NewEnricher(provider, 3, 0).Enrich(context.Background(), findings, nil)
	assert.LessOrEqual(t, provider.maxInFlight.Load(), int32(3))
	assert.Len(t, provider.prompts, 12)
}

func TestNilEnricher(t *testing.T) {
	var e *Enricher
	in := []models.Finding{{Line: 1}}
	assert.Equal(t, in, e.Enrich(context.Background(), in, nil))
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		reply       string
		explanation string
		fix         string
	}{
		{"Explanation: short.\nFix: do it", "short.", "do it"},
		{"Explanation: only this", "only this", ""},
		{"no markers at all", "Failed to parse explanation.", ""},
		{"Fix: just a fix", "Failed to parse explanation.", "just a fix"},
	}
	for _, tt := range tests {
		explanation, fix := parseReply(tt.reply)
		assert.Equal(t, tt.explanation, explanation, tt.reply)
		assert.Equal(t, tt.fix, fix, tt.reply)
	}
}

func TestSnippet(t *testing.T) {
	lines := strings.Split("a\nb\nc\nd\ne\nf\ng\nh", "\n")

	assert.Equal(t, "3 c\n4 d\n5 e\n6 f\n7 g\n8 h\n", snippet(lines, 5))
	assert.Equal(t, "1 a\n2 b\n3 c\n4 d\n", snippet(lines, 1))
	assert.Equal(t, "7 g\n8 h\n", snippet(lines, 9))
	assert.Empty(t, snippet(lines, 0))
}

func TestBuildPromptIncludesFinding(t *testing.T) {
	prompt := buildPrompt(models.Finding{
		Line:     2,
		Message:  "Infinite loop detected",
		Category: models.CategoryFatalError,
	}, []string{"x = 1", "while True:", "    pass"})

	assert.Contains(t, prompt, "Issue Category: fatal_error")
	assert.Contains(t, prompt, "Issue Message: Infinite loop detected")
	assert.Contains(t, prompt, "Line Number: 2")
	assert.Contains(t, prompt, "2 while True:")
	assert.Contains(t, prompt, "Explanation:")
}

func TestNewProvider(t *testing.T) {
	cfg := config.DefaultConfig().Explain

	p, err := NewProvider(cfg)
	assert.NoError(t, err)
	assert.Nil(t, p)

	cfg.Enabled = true
	_, err = NewProvider(cfg)
	assert.Error(t, err, "missing key")

	cfg.APIKey = "key"
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicProvider{}, p)

	cfg.Provider = "openai"
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)
}

func TestAnthropicProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, "sys", req.System)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "hello", req.Messages[0].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Explanation: hi"}]}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("secret", "claude-test", srv.URL, 100, time.Second)
	reply, err := p.Complete(context.Background(), "sys", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Explanation: hi", reply)
}

func TestAnthropicProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicProvider("bad", "m", srv.URL, 100, time.Second).Complete(context.Background(), "s", "p")
	assert.ErrorContains(t, err, "authentication_error")
}

func TestOpenAIProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Explanation: ok"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "gpt-test", srv.URL+"/v1", 100)
	reply, err := p.Complete(context.Background(), "sys", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Explanation: ok", reply)
}
