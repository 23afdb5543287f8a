package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCtx(t *testing.T) context.Context {
	return zapctx.WithLogger(context.Background(), zap.NewNop())
}

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:       baseURL,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})
}

func TestPostJSONSuccess(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testClient(srv.URL).PostJSON(testCtx(t), "/api/activity", map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
}

func TestPostJSONDecodeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "hello", "confidence": 0.9}`))
	}))
	defer srv.Close()

	var out struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	err := testClient(srv.URL).PostJSONDecode(testCtx(t), "/ocr", map[string]string{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text)
	assert.InDelta(t, 0.9, out.Confidence, 0.001)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testClient(srv.URL).PostJSON(testCtx(t), "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := testClient(srv.URL).PostJSON(testCtx(t), "/x", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "client error 422")
}

func TestExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testClient(srv.URL).PostJSON(testCtx(t), "/x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error 500")
}

func TestAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "secret", RetryDelay: time.Millisecond})
	require.NoError(t, c.PostJSON(testCtx(t), "/x", nil))
	assert.Equal(t, "secret", gotKey)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, testClient(srv.URL).Ping(testCtx(t)))
	assert.Error(t, testClient(srv.URL+"/missing").Ping(testCtx(t)))
}
