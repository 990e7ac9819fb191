package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskmate-ai/deskmate"
	"github.com/deskmate-ai/deskmate/config"
	"github.com/deskmate-ai/deskmate/conversation"
	"github.com/deskmate-ai/deskmate/core"
	"github.com/deskmate-ai/deskmate/model"
	"github.com/deskmate-ai/deskmate/tool"
)

func newTestEngine(t *testing.T, llm *model.MockModel) *Engine {
	t.Helper()

	cfg := config.Default()
	cfg.ServiceNow = config.ServiceNowConfig{
		InstanceURL: "https://dev12345.service-now.com",
		Username:    "admin",
		Password:    "secret",
	}

	echo := tool.NewFunctionTool(
		"echo",
		"Echo the given text back",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			return map[string]any{"echoed": args["text"]}, nil
		},
	)

	d, err := deskmate.New(cfg, func(o *deskmate.Options) {
		o.Model = llm
		o.Tools = []tool.Tool{echo}
	})
	require.NoError(t, err)

	return NewEngine(d)
}

func TestEngine_Query(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.QueueTextResponse("Here are your incidents.")

	engine := newTestEngine(t, llm)

	response, err := engine.Query(context.Background(), "List my incidents")
	require.NoError(t, err)
	assert.Equal(t, "Here are your incidents.", response)
}

func TestEngine_Query_FreshSessionPerCall(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.QueueTextResponse("First answer.")
	llm.QueueTextResponse("Second answer.")

	engine := newTestEngine(t, llm)

	_, err := engine.Query(context.Background(), "first question")
	require.NoError(t, err)

	_, err = engine.Query(context.Background(), "second question")
	require.NoError(t, err)

	requests := llm.Requests()
	require.Len(t, requests, 2)

	// The second request carries no history from the first call: just the
	// instruction content and the fresh user message.
	require.Len(t, requests[1].Contents, 2)
	assert.Equal(t, "system", requests[1].Contents[0].Role)
	assert.Equal(t, "user", requests[1].Contents[1].Role)
}

func TestEngine_Query_ToolOnlyTurnReturnsFallback(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.QueueFunctionCallResponse("call-1", "echo", `{"text": "hi"}`)
	llm.QueueResponses(model.Response{
		Content:      core.Content{Role: "assistant"},
		FinishReason: "stop",
	})

	engine := newTestEngine(t, llm)

	response, err := engine.Query(context.Background(), "echo hi")
	require.NoError(t, err)
	assert.Equal(t, conversation.FallbackNotice, response)
}

func TestEngine_Query_Failure(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.FailWith(assert.AnError)

	engine := newTestEngine(t, llm)

	_, err := engine.Query(context.Background(), "hello")
	require.Error(t, err)

	var failure *conversation.RunnerFailure
	assert.ErrorAs(t, err, &failure)
}

func TestServerAndClient_RoundTrip(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.QueueTextResponse("All quiet on the service desk.")

	server := httptest.NewServer(NewServer(newTestEngine(t, llm)))
	defer server.Close()

	client := NewClient(server.URL)

	response, err := client.Query(context.Background(), "Any open incidents?")
	require.NoError(t, err)
	assert.Equal(t, "All quiet on the service desk.", response)
}

func TestServerAndClient_EmptyText(t *testing.T) {
	llm := model.NewMockModel("mock", "test")

	server := httptest.NewServer(NewServer(newTestEngine(t, llm)))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.Query(context.Background(), "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query must not be empty")
}

func TestServerAndClient_EngineFailure(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.FailWith(assert.AnError)

	server := httptest.NewServer(NewServer(newTestEngine(t, llm)))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.Query(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner failure")
}

func TestServer_BadJSON(t *testing.T) {
	llm := model.NewMockModel("mock", "test")

	server := httptest.NewServer(NewServer(newTestEngine(t, llm)))
	defer server.Close()

	resp, err := http.Post(server.URL+"/v1/query", "application/json", strings.NewReader("{oops"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClient_StatusWithoutErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.Query(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
