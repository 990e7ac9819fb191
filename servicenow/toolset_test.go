package servicenow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskmate-ai/deskmate/core"
	"github.com/deskmate-ai/deskmate/logging"
	"github.com/deskmate-ai/deskmate/tool"
)

func newTestToolContext() *core.ToolContext {
	sess := core.NewSession("test-session", "test-user")
	baseContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "hello"}}}
	runCtx := core.NewRunContext(
		context.Background(),
		sess.ID,
		"test-user",
		"run-id",
		core.AgentInfo{Name: "TestAgent", Type: "test"},
		baseContent,
		0,
		make(chan core.Event, 1),
		nil,
		sess,
		nil,
		logging.NoOpLogger{},
	)

	return core.NewToolContext(runCtx, "fc-1")
}

func findTool(t *testing.T, tools []tool.Tool, name string) tool.Tool {
	t.Helper()

	for _, tl := range tools {
		if tl.Name() == name {
			return tl
		}
	}

	t.Fatalf("tool %s not found", name)

	return nil
}

func TestToolset_Tools_NamesAndOrder(t *testing.T) {
	ts := NewToolset(NewClient("http://example.com", "u", "p"))

	var names []string
	for _, tl := range ts.Tools() {
		names = append(names, tl.Name())
	}

	assert.Equal(t, []string{
		"servicenow_change_request_list",
		"servicenow_change_request_get",
		"servicenow_change_request_create",
		"servicenow_change_request_update",
		"servicenow_incident_list",
		"servicenow_incident_get",
		"servicenow_incident_create",
		"servicenow_incident_update",
		"servicenow_kb_knowledge_list",
		"servicenow_kb_knowledge_get",
		"servicenow_problem_list",
		"servicenow_problem_get",
		"servicenow_problem_create",
		"servicenow_problem_update",
		"servicenow_sc_request_list",
		"servicenow_sc_request_get",
		"servicenow_sc_request_create",
		"servicenow_sys_user_list",
		"servicenow_sys_user_get",
	}, names)
}

func TestToolset_CustomMatrixAndPrefix(t *testing.T) {
	ts := NewToolset(NewClient("http://example.com", "u", "p"), func(o *ToolsetOptions) {
		o.TableOperations = map[string][]Operation{
			"cmdb_ci": {OperationList},
		}
		o.NamePrefix = "snow"
	})

	tools := ts.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "snow_cmdb_ci_list", tools[0].Name())
}

func TestToolset_ToolDescriptionsMentionTable(t *testing.T) {
	ts := NewToolset(NewClient("http://example.com", "u", "p"))
	tools := ts.Tools()

	listTool := findTool(t, tools, "servicenow_incident_list")
	assert.Contains(t, listTool.Description(), "incident")
	assert.Contains(t, listTool.Description(), "sorting is not supported")

	getTool := findTool(t, tools, "servicenow_incident_get")
	assert.Contains(t, getTool.Description(), "sys_id")
}

func TestToolset_ListTool_AppliesDefaultLimit(t *testing.T) {
	var gotLimit string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("sysparm_limit")

		_, _ = w.Write([]byte(`{"result": [{"number": "INC001"}]}`))
	}))
	defer server.Close()

	ts := NewToolset(NewClient(server.URL, "u", "p"))
	listTool := findTool(t, ts.Tools(), "servicenow_incident_list")

	result, err := listTool.Call(newTestToolContext(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "10", gotLimit)

	records, ok := result.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `[{"number": "INC001"}]`, string(records))
}

func TestToolset_ListTool_KeepsFieldOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"short_description":"disk full","number":"INC001"}]}`))
	}))
	defer server.Close()

	ts := NewToolset(NewClient(server.URL, "u", "p"))
	listTool := findTool(t, ts.Tools(), "servicenow_incident_list")

	result, err := listTool.Call(newTestToolContext(), map[string]any{})
	require.NoError(t, err)

	records, ok := result.(json.RawMessage)
	require.True(t, ok)
	assert.Equal(t, `[{"short_description":"disk full","number":"INC001"}]`, string(records))
}

func TestToolset_ListTool_PassesArguments(t *testing.T) {
	var gotQuery, gotLimit, gotFields, gotOffset string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("sysparm_query")
		gotLimit = r.URL.Query().Get("sysparm_limit")
		gotFields = r.URL.Query().Get("sysparm_fields")
		gotOffset = r.URL.Query().Get("sysparm_offset")

		_, _ = w.Write([]byte(`{"result": []}`))
	}))
	defer server.Close()

	ts := NewToolset(NewClient(server.URL, "u", "p"))
	listTool := findTool(t, ts.Tools(), "servicenow_problem_list")

	result, err := listTool.Call(newTestToolContext(), map[string]any{
		"query":  "active=true",
		"limit":  float64(3),
		"fields": "number",
		"offset": float64(6),
	})
	require.NoError(t, err)
	assert.Equal(t, "active=true", gotQuery)
	assert.Equal(t, "3", gotLimit)
	assert.Equal(t, "number", gotFields)
	assert.Equal(t, "6", gotOffset)

	records, ok := result.(json.RawMessage)
	require.True(t, ok)
	assert.Equal(t, "[]", string(records))
}

func TestToolset_ListTool_NullResultBecomesEmptyArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": null}`))
	}))
	defer server.Close()

	ts := NewToolset(NewClient(server.URL, "u", "p"))
	listTool := findTool(t, ts.Tools(), "servicenow_incident_list")

	result, err := listTool.Call(newTestToolContext(), map[string]any{})
	require.NoError(t, err)

	records, ok := result.(json.RawMessage)
	require.True(t, ok)
	assert.Equal(t, "[]", string(records))
}

func TestToolset_GetTool_RequiresSysID(t *testing.T) {
	ts := NewToolset(NewClient("http://example.com", "u", "p"))
	getTool := findTool(t, ts.Tools(), "servicenow_incident_get")

	_, err := getTool.Call(newTestToolContext(), map[string]any{})
	require.Error(t, err)

	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "sys_id")
}

func TestToolset_GetTool_FetchesRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/now/table/sys_user/u42", r.URL.Path)

		_, _ = w.Write([]byte(`{"result": {"sys_id": "u42", "name": "Abel Tuter"}}`))
	}))
	defer server.Close()

	ts := NewToolset(NewClient(server.URL, "u", "p"))
	getTool := findTool(t, ts.Tools(), "servicenow_sys_user_get")

	result, err := getTool.Call(newTestToolContext(), map[string]any{"sys_id": "u42"})
	require.NoError(t, err)

	record, ok := result.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"sys_id": "u42", "name": "Abel Tuter"}`, string(record))
}

func TestToolset_CreateTool_SendsFields(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result": {"sys_id": "new1", "number": "CHG0001"}}`))
	}))
	defer server.Close()

	ts := NewToolset(NewClient(server.URL, "u", "p"))
	createTool := findTool(t, ts.Tools(), "servicenow_change_request_create")

	result, err := createTool.Call(newTestToolContext(), map[string]any{
		"fields": map[string]any{"short_description": "Upgrade router"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Upgrade router", gotBody["short_description"])

	record, ok := result.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"sys_id": "new1", "number": "CHG0001"}`, string(record))
}

func TestToolset_UpdateTool_PatchesRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/now/table/problem/p1", r.URL.Path)

		_, _ = w.Write([]byte(`{"result": {"sys_id": "p1", "state": "resolved"}}`))
	}))
	defer server.Close()

	ts := NewToolset(NewClient(server.URL, "u", "p"))
	updateTool := findTool(t, ts.Tools(), "servicenow_problem_update")

	result, err := updateTool.Call(newTestToolContext(), map[string]any{
		"sys_id": "p1",
		"fields": map[string]any{"state": "resolved"},
	})
	require.NoError(t, err)

	record, ok := result.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"sys_id": "p1", "state": "resolved"}`, string(record))
}

func TestToolset_APIErrorSurfacesAsToolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"message": "No Record found"}, "status": "failure"}`))
	}))
	defer server.Close()

	ts := NewToolset(NewClient(server.URL, "u", "p"))
	getTool := findTool(t, ts.Tools(), "servicenow_incident_get")

	_, err := getTool.Call(newTestToolContext(), map[string]any{"sys_id": "missing"})
	require.Error(t, err)

	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "No Record found")
}

func TestGenerateSchema_ListInput(t *testing.T) {
	schema, err := GenerateSchema(ListInput{})
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	assert.NotContains(t, schema, "$id")

	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)

	limit, ok := properties["limit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "integer", limit["type"])
	assert.NotEmpty(t, limit["description"])

	query, ok := properties["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", query["type"])
}

func TestGenerateSchema_RequiredFields(t *testing.T) {
	schema, err := GenerateSchema(UpdateInput{})
	require.NoError(t, err)

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, required, "sys_id")
	assert.Contains(t, required, "fields")
}
