package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// runLineDecoder decodes the whole source and returns the emitted events
// together with Decode's error.
func runLineDecoder(t *testing.T, body io.Reader) ([]Event, error) {
	t.Helper()

	dec := NewLineDecoder()
	var events []Event
	drained := make(chan struct{})

	go func() {
		for evt := range dec.Events() {
			events = append(events, evt)
		}
		close(drained)
	}()

	err := dec.Decode(body)
	dec.Close()
	<-drained

	return events, err
}

func TestLineDecoder_ChatStream(t *testing.T) {
	body := strings.NewReader(
		`{"message":{"content":"Hi"},"done":false}` + "\n" +
			`{"message":{"content":" there"},"done":true}` + "\n",
	)

	events, err := runLineDecoder(t, body)
	assert.NoError(t, err)
	assert.Equal(t, []Event{
		{Chunk: "Hi", Done: false},
		{Chunk: " there", Done: true},
	}, events)
}

func TestLineDecoder_SkipsUnparseableLines(t *testing.T) {
	body := strings.NewReader(
		"not json at all\n" +
			`{"message":{"content":"ok"},"done":false}` + "\n" +
			`{"status":"loading"}` + "\n" +
			`{"message":{"role":"assistant"}}` + "\n",
	)

	events, err := runLineDecoder(t, body)
	assert.NoError(t, err)
	assert.Equal(t, []Event{{Chunk: "ok", Done: false}}, events)
}

func TestLineDecoder_EmptyContentIsStillForwarded(t *testing.T) {
	body := strings.NewReader(`{"message":{"content":""},"done":true}` + "\n")

	events, err := runLineDecoder(t, body)
	assert.NoError(t, err)
	assert.Equal(t, []Event{{Chunk: "", Done: true}}, events)
}

func TestLineDecoder_DoneDefaultsToFalse(t *testing.T) {
	body := strings.NewReader(`{"message":{"content":"partial"}}` + "\n")

	events, err := runLineDecoder(t, body)
	assert.NoError(t, err)
	assert.Equal(t, []Event{{Chunk: "partial", Done: false}}, events)
}

func TestLineDecoder_NoSyntheticTerminalEvent(t *testing.T) {
	body := strings.NewReader(`{"message":{"content":"cut off"},"done":false}` + "\n")

	events, err := runLineDecoder(t, body)
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.False(t, events[0].Done)
}

// failingReader yields its payload, then a transport error.
type failingReader struct {
	payload string
	err     error
	served  bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.served {
		r.served = true
		return copy(p, r.payload), nil
	}
	return 0, r.err
}

func TestLineDecoder_SurfacesReadError(t *testing.T) {
	wantErr := errors.New("connection reset")
	body := &failingReader{
		payload: `{"message":{"content":"Hi"},"done":false}` + "\n",
		err:     wantErr,
	}

	events, err := runLineDecoder(t, body)
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, []Event{{Chunk: "Hi", Done: false}}, events)
}
