package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/theapemachine/bridge-go/pkg/errors"
	"github.com/theapemachine/bridge-go/pkg/stream"
)

/*
OllamaProvider talks to an Ollama-compatible local model server.  Streaming
goes through the raw chat endpoint so the NDJSON body can be normalized by
the line decoder; model listing uses the official client.
*/
type OllamaProvider struct {
	endpoint string
	client   *http.Client
}

type OllamaProviderOption func(*OllamaProvider)

func NewOllamaProvider(options ...OllamaProviderOption) *OllamaProvider {
	prvdr := &OllamaProvider{
		endpoint: "http://localhost:11434",
		client:   http.DefaultClient,
	}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func WithEndpoint(endpoint string) OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		prvdr.endpoint = endpoint
	}
}

func WithHTTPClient(client *http.Client) OllamaProviderOption {
	return func(prvdr *OllamaProvider) {
		prvdr.client = client
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

func (prvdr *OllamaProvider) chatURL() string {
	return strings.TrimRight(prvdr.endpoint, "/") + "/api/chat"
}

/*
Stream opens a streaming chat and returns the session whose Events channel
delivers normalized chunks until the server reports done.  Request and
connection failures are returned synchronously; a mid-stream read failure
ends the session and is reported once through Session.Err.
*/
func (prvdr *OllamaProvider) Stream(
	ctx context.Context, messages []Message, model string,
) (*Session, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})

	if err != nil {
		return nil, errors.ErrValidation.WithMessagef("failed to encode chat request: %v", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, prvdr.chatURL(), bytes.NewReader(payload),
	)

	if err != nil {
		return nil, errors.ErrTransport.WithMessagef("failed to build request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := prvdr.client.Do(req)

	if err != nil {
		return nil, errors.ErrTransport.WithMessagef("failed to reach ollama: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.ErrTransport.WithMessagef("ollama API error: %s", resp.Status)
	}

	dec := stream.NewLineDecoder()
	sess := &Session{ID: uuid.NewString(), Events: dec.Events()}

	go func() {
		defer resp.Body.Close()

		if err := dec.Decode(resp.Body); err != nil {
			log.Error("ollama stream aborted", "session", sess.ID, "error", err)
			sess.err = errors.ErrTransport.WithMessagef("stream read failed: %v", err)
		}

		dec.Close()
	}()

	return sess, nil
}

/*
Prompt runs a single non-streaming completion and returns the full message
content.
*/
func (prvdr *OllamaProvider) Prompt(
	ctx context.Context, messages []Message, model string,
) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	})

	if err != nil {
		return "", errors.ErrValidation.WithMessagef("failed to encode chat request: %v", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, prvdr.chatURL(), bytes.NewReader(payload),
	)

	if err != nil {
		return "", errors.ErrTransport.WithMessagef("failed to build request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := prvdr.client.Do(req)

	if err != nil {
		return "", errors.ErrTransport.WithMessagef("failed to reach ollama: %v", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.ErrTransport.WithMessagef("ollama API error: %s", resp.Status)
	}

	var body chatResponse

	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.ErrTransport.WithMessagef("failed to decode response: %v", err)
	}

	return body.Message.Content, nil
}

/*
Models lists the tags known to the local server.
*/
func (prvdr *OllamaProvider) Models(ctx context.Context) ([]string, error) {
	base, err := url.Parse(prvdr.endpoint)

	if err != nil {
		return nil, errors.ErrValidation.WithMessagef("invalid endpoint: %v", err)
	}

	client := api.NewClient(base, prvdr.client)

	resp, err := client.List(ctx)

	if err != nil {
		return nil, errors.ErrTransport.WithMessagef("failed to list models: %v", err)
	}

	names := make([]string, 0, len(resp.Models))

	for _, model := range resp.Models {
		names = append(names, model.Name)
	}

	return names, nil
}
