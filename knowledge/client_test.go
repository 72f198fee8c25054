package knowledge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const completionBody = `{
  "id": "cmpl-1",
  "object": "chat.completion",
  "created": 1760000000,
  "model": "sonar",
  "citations": ["https://example.com/csv"],
  "choices": [
    {"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Use the csv module."}}
  ]
}`

type captured struct {
	Path   string
	Auth   string
	Model  string
	Roles  []string
	Prompt []string
}

func fakeAPI(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Path = r.URL.Path
		got.Auth = r.Header.Get("Authorization")
		raw, err := io.ReadAll(r.Body)
		if err == nil {
			var req struct {
				Model    string `json:"model"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			if json.Unmarshal(raw, &req) == nil {
				got.Model = req.Model
				for _, m := range req.Messages {
					got.Roles = append(got.Roles, m.Role)
					got.Prompt = append(got.Prompt, m.Content)
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(srv.Client()), WithMaxRetries(0)}, opts...)
	c, err := New(Config{APIKey: "pplx-test", BaseURL: srv.URL}, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New(Config{APIKey: "  "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClient_ImplementationIdeas(t *testing.T) {
	srv, got := fakeAPI(t, http.StatusOK, completionBody)
	c := newTestClient(t, srv)

	text, err := c.ImplementationIdeas(context.Background(), "convert JSON to CSV")
	require.NoError(t, err)
	assert.Equal(t, "Use the csv module.", text)

	assert.Equal(t, "/chat/completions", got.Path)
	assert.Equal(t, "Bearer pplx-test", got.Auth)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, []string{"system", "user"}, got.Roles)
	assert.Equal(t, ideasSystemPrompt, got.Prompt[0])
	assert.Equal(t, "I want to create a tool that can convert JSON to CSV. How can I achieve this? "+
		"Please provide code snippets and explain the steps.", got.Prompt[1])
}

func TestClient_Search_ReturnsRawJSON(t *testing.T) {
	srv, got := fakeAPI(t, http.StatusOK, completionBody)
	c := newTestClient(t, srv)

	raw, err := c.Search(context.Background(), "state of the art CSV parsing in Starlark")
	require.NoError(t, err)
	assert.JSONEq(t, completionBody, string(raw))
	assert.Equal(t, []string{"user"}, got.Roles)
}

func TestClient_EmptyChoices(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"sonar","choices":[]}`)
	_, err := newTestClient(t, srv).ImplementationIdeas(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestClient_HTTPError(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusUnauthorized, `{"error":{"message":"bad key","type":"auth"}}`)
	_, err := newTestClient(t, srv).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "knowledge request")
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusOK, completionBody)
	c := newTestClient(t, srv, WithRateLimit(rate.NewLimiter(rate.Every(time.Hour), 1)))

	_, err := c.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}
