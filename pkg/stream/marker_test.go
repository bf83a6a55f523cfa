package stream

import (
	"errors"
	"io"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// chunkReader delivers each chunk from exactly one Read call, the way a slow
// network body would, then EOF (or a transport error when err is set).
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}

	chunk := r.chunks[0]
	r.chunks = r.chunks[1:]
	return copy(p, chunk), nil
}

func runMarkerDecoder(body io.Reader) ([]Event, error) {
	dec := NewMarkerDecoder()
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

func TestMarkerDecoder(t *testing.T) {
	Convey("Given a generative API response body", t, func() {
		Convey("When a marker and its value arrive within one chunk", func() {
			body := &chunkReader{chunks: []string{
				`[{"candidates": [{"content": {"parts": [{"text": "Hello\nworld \"quoted\""}]}}]}`,
			}}

			events, err := runMarkerDecoder(body)

			Convey("It should emit the unescaped text, then one terminal event", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 2)
				So(events[0], ShouldResemble, Event{Chunk: "Hello\nworld \"quoted\"", Done: false})
				So(events[1], ShouldResemble, Event{Chunk: "", Done: true})
			})
		})

		Convey("When values arrive across several chunks", func() {
			body := &chunkReader{chunks: []string{
				`{"text": "first"}`,
				`nothing to see here`,
				`{"text": "second"}`,
			}}

			events, err := runMarkerDecoder(body)

			Convey("It should emit one event per chunk that holds a complete pair", func() {
				So(err, ShouldBeNil)
				So(events, ShouldResemble, []Event{
					{Chunk: "first", Done: false},
					{Chunk: "second", Done: false},
					{Chunk: "", Done: true},
				})
			})
		})

		Convey("When a marker/value pair straddles a chunk boundary", func() {
			// Known limitation: chunks are scanned independently, so the
			// split pair is dropped rather than reassembled.
			body := &chunkReader{chunks: []string{
				`{"te`,
				`xt": "lost"}`,
			}}

			events, err := runMarkerDecoder(body)

			Convey("It should miss the value and only emit the terminal event", func() {
				So(err, ShouldBeNil)
				So(events, ShouldResemble, []Event{{Chunk: "", Done: true}})
			})
		})

		Convey("When the body fails mid-stream", func() {
			wantErr := errors.New("connection reset")
			body := &chunkReader{
				chunks: []string{`{"text": "partial"}`},
				err:    wantErr,
			}

			events, err := runMarkerDecoder(body)

			Convey("It should surface the error without a terminal event", func() {
				So(err, ShouldEqual, wantErr)
				So(events, ShouldResemble, []Event{{Chunk: "partial", Done: false}})
			})
		})
	})
}
