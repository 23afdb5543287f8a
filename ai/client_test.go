package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
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

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"message": map[string]string{"content": content},
	})
	return string(b)
}

func TestCompleteReturnsModelReply(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte(chatReply(`{"is_work_related": false}`)))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "llama3", Token: "tok", Attempts: 1})
	reply, err := c.Complete(context.Background(), "classify this")
	require.NoError(t, err)

	assert.Equal(t, `{"is_work_related": false}`, reply)
	assert.Equal(t, "/api/chat", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "llama3", gotPayload["model"])
	assert.Equal(t, false, gotPayload["stream"])
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(chatReply("ok")))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Attempts: 3})
	reply, err := c.Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteFailsAfterAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Attempts: 2, Timeout: time.Second})
	_, err := c.Complete(context.Background(), "x")
	assert.Error(t, err)
}

func TestOCRExtractText(t *testing.T) {
	image := []byte("jpeg-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ocr", r.URL.Path)

		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		decoded, err := base64.StdEncoding.DecodeString(payload["image"])
		require.NoError(t, err)
		assert.Equal(t, image, decoded)

		w.Write([]byte(`{"text": "visible text", "confidence": 0.87}`))
	}))
	defer srv.Close()

	ocr := NewOCRClient(srv.URL, 5)
	ctx := zapctx.WithLogger(context.Background(), zap.NewNop())
	text, conf, err := ocr.ExtractText(ctx, image)
	require.NoError(t, err)
	assert.Equal(t, "visible text", text)
	assert.InDelta(t, 0.87, conf, 0.001)
}
