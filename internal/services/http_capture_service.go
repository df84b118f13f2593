package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"salesagent/internal/logger"
)

// HTTPCaptureService records provider HTTP exchanges for debugging.
// Each exchange is logged at debug level and the most recent one is kept.
type HTTPCaptureService struct {
	initialized bool
	last        string
	count       int
	base        http.RoundTripper
	mutex       sync.RWMutex
}

// NewHTTPCaptureService creates a capture service wrapping base.
// A nil base uses http.DefaultTransport.
func NewHTTPCaptureService(base http.RoundTripper) *HTTPCaptureService {
	if base == nil {
		base = http.DefaultTransport
	}
	return &HTTPCaptureService{base: base}
}

// Name returns the service name "http_capture" for registration.
func (s *HTTPCaptureService) Name() string {
	return "http_capture"
}

// Initialize clears previously captured data.
func (s *HTTPCaptureService) Initialize() error {
	logger.ServiceOperation("http_capture", "initialize", "starting")
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.initialized = true
	s.last = ""
	s.count = 0

	logger.ServiceOperation("http_capture", "initialize", "completed")
	return nil
}

// Client returns an HTTP client whose transport captures every exchange.
func (s *HTTPCaptureService) Client() *http.Client {
	return &http.Client{Transport: &captureTransport{service: s}}
}

// Last returns the most recent exchange as JSON, or "" when nothing was captured.
func (s *HTTPCaptureService) Last() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.last
}

// Count returns how many exchanges were captured since initialization.
func (s *HTTPCaptureService) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.count
}

func (s *HTTPCaptureService) store(data string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.last = data
	s.count++
}

type captureTransport struct {
	service *HTTPCaptureService
}

// RoundTrip forwards the request and records it with the response or error.
func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	request, err := captureRequest(req)
	if err != nil {
		logger.Error("Failed to capture request", "error", err)
	}

	resp, err := t.service.base.RoundTrip(req)
	end := time.Now()

	var response map[string]interface{}
	if err != nil {
		response = map[string]interface{}{"error": err.Error()}
	} else if response, err = captureResponse(resp); err != nil {
		logger.Error("Failed to capture response", "error", err)
		response = map[string]interface{}{"error": "failed to capture response data"}
		err = nil
	}

	t.record(request, response, start, end)
	return resp, err
}

func (t *captureTransport) record(request, response map[string]interface{}, start, end time.Time) {
	data, err := json.Marshal(map[string]interface{}{
		"http_request":  request,
		"http_response": response,
		"timing": map[string]interface{}{
			"request_time":  start.Format(time.RFC3339),
			"response_time": end.Format(time.RFC3339),
			"duration_ms":   end.Sub(start).Milliseconds(),
		},
	})
	if err != nil {
		logger.Error("Failed to marshal captured exchange", "error", err)
		t.service.store(`{"error": "failed to marshal debug data"}`)
		return
	}

	t.service.store(string(data))
	logger.Debug("HTTP exchange captured", "url", request["url"], "data", string(data))
}

func captureRequest(req *http.Request) (map[string]interface{}, error) {
	data := map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL.String(),
		"headers": maskHeaders(req.Header),
	}
	if req.Body == nil {
		return data, nil
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return data, fmt.Errorf("failed to read request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) > 0 {
		data["body"] = decodeBody(body)
	}
	return data, nil
}

func captureResponse(resp *http.Response) (map[string]interface{}, error) {
	data := map[string]interface{}{
		"status_code": resp.StatusCode,
		"status":      resp.Status,
		"headers":     maskHeaders(resp.Header),
	}
	if resp.Body == nil {
		return data, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return data, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) > 0 {
		data["body"] = decodeBody(body)
	}
	return data, nil
}

func decodeBody(body []byte) interface{} {
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		return parsed
	}
	return string(body)
}

// maskHeaders hides credentials, keeping the first 10 characters of long values.
func maskHeaders(headers http.Header) map[string]interface{} {
	masked := make(map[string]interface{}, len(headers))
	for name, values := range headers {
		lower := strings.ToLower(name)
		if !strings.Contains(lower, "authorization") && !strings.Contains(lower, "api-key") && !strings.Contains(lower, "token") {
			masked[name] = values
			continue
		}
		if len(values) > 0 && len(values[0]) > 10 {
			masked[name] = []string{values[0][:10] + "***[MASKED]***"}
		} else {
			masked[name] = []string{"***[MASKED]***"}
		}
	}
	return masked
}
