package provider

import (
	"context"

	"github.com/theapemachine/bridge-go/pkg/stream"
)

/*
Message is the UI-facing chat message shape, shared by both backends.
Images carry optional base64 payloads for multimodal local models.
*/
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

/*
Interface is implemented by the two supported backends.  The set is closed
by design: each backend has its own wire format and its own decoder, sharing
only the normalized event type.
*/
type Interface interface {
	Stream(ctx context.Context, messages []Message, model string) (*Session, error)
	Models(ctx context.Context) ([]string, error)
}

/*
Session is one live streaming chat: a unique id and the channel normalized
events are delivered on, in read order.
*/
type Session struct {
	ID     string
	Events <-chan stream.Event

	// err is written by the producing goroutine strictly before Events is
	// closed; reading it through Err after the channel closes is safe.
	err error
}

/*
Err reports the single terminal transport error of the session, if any.
Only valid once Events has been closed.
*/
func (sess *Session) Err() error {
	return sess.err
}
