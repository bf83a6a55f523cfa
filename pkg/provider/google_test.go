package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/theapemachine/bridge-go/pkg/errors"
	"github.com/theapemachine/bridge-go/pkg/stream"
)

func TestGoogleProvider_StreamNormalizesPartialJSON(t *testing.T) {
	// The second write is held back until the first event has been consumed,
	// so the two fragments cannot coalesce into one read on the client side.
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-1.5-pro:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		var req geminiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Contents, 2)
		assert.Equal(t, "user", req.Contents[0].Role)
		assert.Equal(t, "model", req.Contents[1].Role)

		flusher := w.(http.Flusher)
		w.Write([]byte(`[{"candidates": [{"content": {"parts": [{"text": "Hello"}]}}]}`))
		flusher.Flush()
		<-release
		w.Write([]byte(`,{"candidates": [{"content": {"parts": [{"text": "\nworld"}]}}]}]`))
		flusher.Flush()
	}))
	defer server.Close()

	prvdr := NewGoogleProvider(WithAPIKey("secret"), WithBaseURL(server.URL))

	sess, err := prvdr.Stream(context.Background(), []Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "previous answer"},
	}, "gemini-1.5-pro")
	assert.NoError(t, err)

	first := <-sess.Events
	assert.Equal(t, stream.Event{Chunk: "Hello", Done: false}, first)
	close(release)

	rest := drainSession(t, sess)
	assert.Equal(t, []stream.Event{
		{Chunk: "\nworld", Done: false},
		{Chunk: "", Done: true},
	}, rest)
	assert.NoError(t, sess.Err())
}

func TestGoogleProvider_StreamSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer server.Close()

	prvdr := NewGoogleProvider(WithAPIKey("bad"), WithBaseURL(server.URL))

	sess, err := prvdr.Stream(context.Background(), nil, "gemini-1.5-pro")
	assert.ErrorIs(t, err, errors.ErrTransport)
	assert.Nil(t, sess)
}

func TestModelScore(t *testing.T) {
	assert.Equal(t, 150, modelScore("gemini-1.5-pro"))
	assert.Equal(t, 0, modelScore("gemini-1.5-flash"))
	assert.Equal(t, 110, modelScore("gemini-pro-latest"))
	assert.Equal(t, 200, modelScore("gemini-ultra"))
}

func TestSortModels_BestFirstAndStable(t *testing.T) {
	names := []string{
		"gemini-1.5-flash",
		"gemini-pro",
		"gemini-ultra",
		"gemini-1.5-pro",
	}

	sortModels(names)

	assert.Equal(t, []string{
		"gemini-ultra",
		"gemini-1.5-pro",
		"gemini-pro",
		"gemini-1.5-flash",
	}, names)
}
