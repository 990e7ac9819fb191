package servicenow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ListRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/now/table/incident", r.URL.Path)
		assert.Equal(t, "active=true", r.URL.Query().Get("sysparm_query"))
		assert.Equal(t, "5", r.URL.Query().Get("sysparm_limit"))
		assert.Equal(t, "number,short_description", r.URL.Query().Get("sysparm_fields"))
		assert.Equal(t, "20", r.URL.Query().Get("sysparm_offset"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", username)
		assert.Equal(t, "secret", password)

		_, _ = w.Write([]byte(`{"result": [{"number": "INC001"}, {"number": "INC002"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")

	records, err := client.ListRecords(context.Background(), "incident", ListOptions{
		Query:  "active=true",
		Limit:  5,
		Fields: "number,short_description",
		Offset: 20,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"number": "INC001"}, {"number": "INC002"}]`, string(records))
}

func TestClient_ListRecords_KeepsFieldOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"short_description":"disk full","number":"INC001"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")

	records, err := client.ListRecords(context.Background(), "incident", ListOptions{})
	require.NoError(t, err)
	// Byte-for-byte: record fields stay in API response order.
	assert.Equal(t, `[{"short_description":"disk full","number":"INC001"}]`, string(records))
}

func TestClient_ListRecords_OmitsUnsetParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)

		_, _ = w.Write([]byte(`{"result": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")

	records, err := client.ListRecords(context.Background(), "incident", ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(records))
}

func TestClient_GetRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/now/table/incident/abc123", r.URL.Path)
		assert.Equal(t, "number,state", r.URL.Query().Get("sysparm_fields"))

		_, _ = w.Write([]byte(`{"result": {"number": "INC001", "state": "2"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")

	record, err := client.GetRecord(context.Background(), "incident", "abc123", "number,state")
	require.NoError(t, err)
	assert.Equal(t, `{"number": "INC001", "state": "2"}`, string(record))
}

func TestClient_GetRecord_NullResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": null}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")

	record, err := client.GetRecord(context.Background(), "incident", "abc123", "")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(record))
}

func TestClient_GetRecord_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"message": "No Record found", "detail": "Record doesn't exist or ACL restricts the record retrieval"}, "status": "failure"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")

	_, err := client.GetRecord(context.Background(), "incident", "missing", "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.NotFound())
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "No Record found", apiErr.Message)
	assert.Contains(t, apiErr.Detail, "ACL restricts")
}

func TestClient_CreateRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/now/table/incident", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var fields map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
		assert.Equal(t, "Printer jam", fields["short_description"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result": {"sys_id": "new123", "number": "INC100", "short_description": "Printer jam"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")

	record, err := client.CreateRecord(context.Background(), "incident", map[string]any{
		"short_description": "Printer jam",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sys_id": "new123", "number": "INC100", "short_description": "Printer jam"}`, string(record))
}

func TestClient_UpdateRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/now/table/incident/abc123", r.URL.Path)

		var fields map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
		assert.Equal(t, "6", fields["state"])

		_, _ = w.Write([]byte(`{"result": {"sys_id": "abc123", "state": "6"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")

	record, err := client.UpdateRecord(context.Background(), "incident", "abc123", map[string]any{
		"state": "6",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sys_id": "abc123", "state": "6"}`, string(record))
}

func TestClient_ErrorWithoutEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")

	_, err := client.ListRecords(context.Background(), "incident", ListOptions{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
	assert.False(t, apiErr.NotFound())
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/now/table/incident", r.URL.Path)

		_, _ = w.Write([]byte(`{"result": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "admin", "secret")

	_, err := client.ListRecords(context.Background(), "incident", ListOptions{})
	require.NoError(t, err)
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, "admin", "secret")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListRecords(ctx, "incident", ListOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAPIError_Error(t *testing.T) {
	withDetail := &APIError{StatusCode: 404, Message: "No Record found", Detail: "Record doesn't exist"}
	assert.Equal(t, "servicenow: No Record found (status 404): Record doesn't exist", withDetail.Error())

	withoutDetail := &APIError{StatusCode: 500, Message: "boom"}
	assert.Equal(t, "servicenow: boom (status 500)", withoutDetail.Error())
}
