package naming

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/FreedomSnow/sinoname/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&config.NamingConfig{
		BaseURL: serverURL,
		APIKey:  "test-api-key",
	})
}

func TestClient_Generate_FansOutPerStyle(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.Equal(t, "/v1/names/generate", r.URL.Path)
		require.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Styles, 1)

		resp := GenerateResult{Suggestions: []Suggestion{
			{Chinese: "李明", Pinyin: "Lǐ Míng", Meaning: "bright", Style: req.Styles[0]},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	result, err := client.Generate(context.Background(), GenerateRequest{
		EnglishName: "Michael",
		Styles:      []string{"classic", "modern"},
	})
	require.NoError(t, err)

	assert.Equal(t, int32(2), requests.Load())
	require.Len(t, result.Suggestions, 2)
	// Style order is preserved regardless of response arrival order
	assert.Equal(t, "classic", result.Suggestions[0].Style)
	assert.Equal(t, "modern", result.Suggestions[1].Style)
}

func TestClient_Generate_DefaultStyles(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"suggestions":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Generate(context.Background(), GenerateRequest{EnglishName: "Sarah"})
	require.NoError(t, err)
	assert.Equal(t, int32(len(DefaultStyles)), requests.Load())
}

func TestClient_Generate_ValidationErrors(t *testing.T) {
	// No server needed: validation rejects before any request is sent
	client := newTestClient("http://127.0.0.1:0")

	tests := []struct {
		name string
		req  GenerateRequest
	}{
		{"missing_english_name", GenerateRequest{}},
		{"unknown_gender", GenerateRequest{EnglishName: "Sam", Gender: "robot"}},
		{"unknown_style", GenerateRequest{EnglishName: "Sam", Styles: []string{"brutalist"}}},
		{"count_too_large", GenerateRequest{EnglishName: "Sam", Count: 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Generate(context.Background(), tt.req)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestClient_Generate_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("model overloaded"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Generate(context.Background(), GenerateRequest{
		EnglishName: "Michael",
		Styles:      []string{"classic"},
	})
	require.Error(t, err)

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusBadGateway, upstreamErr.StatusCode)
	assert.Contains(t, upstreamErr.Body, "model overloaded")
}

func TestClient_Customize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/names/customize", r.URL.Path)

		var req CustomizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "prefer water radicals", req.Requirements)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chinese":"江河","pinyin":"Jiāng Hé","meaning":"rivers"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	suggestion, err := client.Customize(context.Background(), CustomizeRequest{
		EnglishName:  "River",
		Requirements: "prefer water radicals",
	})
	require.NoError(t, err)
	assert.Equal(t, "江河", suggestion.Chinese)
}

func TestClient_Customize_ValidationError(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0")

	_, err := client.Customize(context.Background(), CustomizeRequest{EnglishName: "River"})
	require.ErrorIs(t, err, ErrInvalidRequest)
}
