package stream

import (
	"io"
	"strings"
)

// textMarker precedes the text value inside the partial JSON fragments the
// generative API streams back.
const textMarker = `"text": "`

/*
MarkerDecoder normalizes the partial-JSON streaming format of the remote
generative API.  The backend emits JSON fragments with no line or object
delimiting guarantees, so instead of parsing, each newly received chunk is
scanned for the first occurrence of the text marker; everything up to the
next unescaped quote is taken as the raw value, unescaped (\n and \" only)
and emitted as one Event.

Each chunk is scanned independently, never accumulated: a marker/value pair
that straddles a chunk boundary is missed entirely.  That is a known
limitation of the wire handling, kept as-is rather than papered over.

After the body is exhausted the decoder emits exactly one synthetic
Event{Chunk: "", Done: true}; this is the only decoder responsible for a
terminal signal.
*/
type MarkerDecoder struct {
	out chan Event
}

func NewMarkerDecoder() *MarkerDecoder {
	return &MarkerDecoder{out: make(chan Event)}
}

/*
Events returns the channel decoded events are delivered on, in read order.
*/
func (dec *MarkerDecoder) Events() <-chan Event {
	return dec.out
}

/*
Decode consumes the live response body chunk by chunk until it is exhausted.
A read failure aborts the stream without the terminal event and is returned
to the caller.  Decode does not close the output channel, callers do that
via Close once the error has been recorded.
*/
func (dec *MarkerDecoder) Decode(body io.Reader) error {
	buf := make([]byte, 32*1024)

	for {
		n, err := body.Read(buf)

		if n > 0 {
			dec.scan(string(buf[:n]))
		}

		if err == io.EOF {
			dec.out <- Event{Chunk: "", Done: true}
			return nil
		}

		if err != nil {
			return err
		}
	}
}

/*
Close closes the output channel.  Call exactly once, after Decode returns.
*/
func (dec *MarkerDecoder) Close() {
	close(dec.out)
}

// scan extracts at most one text value from a single chunk.
func (dec *MarkerDecoder) scan(chunk string) {
	start := strings.Index(chunk, textMarker)

	if start < 0 {
		return
	}

	rest := chunk[start+len(textMarker):]
	end := -1

	for i := 0; i < len(rest); i++ {
		if rest[i] == '"' && (i == 0 || rest[i-1] != '\\') {
			end = i
			break
		}
	}

	if end < 0 {
		return
	}

	value := rest[:end]
	value = strings.ReplaceAll(value, `\n`, "\n")
	value = strings.ReplaceAll(value, `\"`, `"`)

	dec.out <- Event{Chunk: value, Done: false}
}
