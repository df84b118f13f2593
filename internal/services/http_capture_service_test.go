package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPCaptureService_Name(t *testing.T) {
	assert.Equal(t, "http_capture", NewHTTPCaptureService(nil).Name())
}

func TestHTTPCaptureService_CapturesProviderExchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":0,"model":"test-model",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"captured"}}]}`))
	}))
	defer server.Close()

	capture := NewHTTPCaptureService(nil)
	require.NoError(t, capture.Initialize())
	assert.Empty(t, capture.Last())

	client := NewOpenAIClient("sk-secret-key-123456", testModel,
		option.WithBaseURL(server.URL+"/v1/"), option.WithMaxRetries(0), option.WithHTTPClient(capture.Client()))
	out, err := client.Invoke(context.Background(), "Say hello")
	require.NoError(t, err)
	assert.Equal(t, "captured", out)
	assert.Equal(t, 1, capture.Count())

	var exchange map[string]any
	require.NoError(t, json.Unmarshal([]byte(capture.Last()), &exchange))

	request := exchange["http_request"].(map[string]any)
	assert.Equal(t, "POST", request["method"])
	headers := request["headers"].(map[string]any)
	assert.Equal(t, []any{"Bearer sk-***[MASKED]***"}, headers["Authorization"])
	assert.Equal(t, "test-model", request["body"].(map[string]any)["model"])

	response := exchange["http_response"].(map[string]any)
	assert.EqualValues(t, http.StatusOK, response["status_code"])
	assert.Contains(t, exchange, "timing")

	require.NoError(t, capture.Initialize())
	assert.Zero(t, capture.Count())
}

func TestHTTPCaptureService_RecordsTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	capture := NewHTTPCaptureService(nil)
	require.NoError(t, capture.Initialize())

	resp, err := capture.Client().Get(url)
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)

	var exchange map[string]any
	require.NoError(t, json.Unmarshal([]byte(capture.Last()), &exchange))
	assert.Contains(t, exchange["http_response"].(map[string]any), "error")
}

func TestMaskHeaders(t *testing.T) {
	masked := maskHeaders(http.Header{
		"X-Api-Key":    {"short"},
		"Content-Type": {"application/json"},
	})
	assert.Equal(t, []string{"***[MASKED]***"}, masked["X-Api-Key"])
	assert.Equal(t, []string{"application/json"}, masked["Content-Type"])
}
