package stream

import (
	"bufio"
	"encoding/json"
	"io"
)

/*
LineDecoder normalizes the NDJSON chat protocol spoken by Ollama-compatible
model servers.  Incoming bytes are buffered and split on line boundaries;
each complete line is parsed as a JSON object carrying a nested
message.content field and a done flag, and forwarded as an Event.

Lines that are not valid JSON, or that parse but lack the content field, are
skipped without error: partial writes and keep-alive noise are expected on
this wire.  The decoder never synthesizes a terminal event of its own; if
the backend never sends done=true the stream simply ends when the body does.
*/
type LineDecoder struct {
	out chan Event
}

func NewLineDecoder() *LineDecoder {
	return &LineDecoder{out: make(chan Event)}
}

/*
Events returns the channel decoded events are delivered on, in read order.
*/
func (dec *LineDecoder) Events() <-chan Event {
	return dec.out
}

// chatLine mirrors the per-line response shape of the chat endpoint.  The
// content field is a pointer so a missing field can be told apart from an
// empty string.
type chatLine struct {
	Message struct {
		Content *string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

/*
Decode consumes the live response body until it is exhausted, emitting one
Event per recognized line.  A read failure aborts the stream and is returned
to the caller; by then any events already emitted stand.  Decode does not
close the output channel, callers do that via Close once the error has been
recorded.
*/
func (dec *LineDecoder) Decode(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var line chatLine

		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}

		if line.Message.Content == nil {
			continue
		}

		dec.out <- Event{Chunk: *line.Message.Content, Done: line.Done}
	}

	return scanner.Err()
}

/*
Close closes the output channel.  Call exactly once, after Decode returns.
*/
func (dec *LineDecoder) Close() {
	close(dec.out)
}
