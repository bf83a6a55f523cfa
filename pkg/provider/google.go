package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/theapemachine/bridge-go/pkg/errors"
	"github.com/theapemachine/bridge-go/pkg/stream"
	"google.golang.org/genai"
)

/*
googleRoleMap compresses convertMessages' switch.  Anything that is not an
assistant-side role becomes "user" on the Gemini wire.
*/
var googleRoleMap = map[string]string{
	"assistant": "model",
	"agent":     "model",
}

/*
GoogleProvider talks to the Gemini generative API.  Streaming goes through
the raw streamGenerateContent endpoint so the partial-JSON body can be
normalized by the marker decoder; model listing uses the genai SDK.
*/
type GoogleProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type GoogleProviderOption func(*GoogleProvider)

func NewGoogleProvider(options ...GoogleProviderOption) *GoogleProvider {
	prvdr := &GoogleProvider{
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		client:  http.DefaultClient,
	}

	for _, option := range options {
		option(prvdr)
	}

	return prvdr
}

func WithAPIKey(apiKey string) GoogleProviderOption {
	return func(prvdr *GoogleProvider) {
		prvdr.apiKey = apiKey
	}
}

// WithBaseURL points the provider at a different API root, used by tests.
func WithBaseURL(baseURL string) GoogleProviderOption {
	return func(prvdr *GoogleProvider) {
		prvdr.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithGoogleHTTPClient(client *http.Client) GoogleProviderOption {
	return func(prvdr *GoogleProvider) {
		prvdr.client = client
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

func convertMessages(messages []Message) []geminiContent {
	out := make([]geminiContent, 0, len(messages))

	for _, msg := range messages {
		role, ok := googleRoleMap[msg.Role]

		if !ok {
			role = "user"
		}

		out = append(out, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}

	return out
}

/*
Stream opens a streaming generation and returns the session whose Events
channel delivers normalized chunks, terminated by the decoder's synthetic
done event once the body is exhausted.  Request and connection failures are
returned synchronously; a mid-stream read failure ends the session without
the terminal event and is reported once through Session.Err.
*/
func (prvdr *GoogleProvider) Stream(
	ctx context.Context, messages []Message, model string,
) (*Session, error) {
	payload, err := json.Marshal(geminiRequest{Contents: convertMessages(messages)})

	if err != nil {
		return nil, errors.ErrValidation.WithMessagef("failed to encode request: %v", err)
	}

	endpoint := fmt.Sprintf(
		"%s/models/%s:streamGenerateContent?key=%s",
		prvdr.baseURL, model, url.QueryEscape(prvdr.apiKey),
	)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint, bytes.NewReader(payload),
	)

	if err != nil {
		return nil, errors.ErrTransport.WithMessagef("failed to build request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := prvdr.client.Do(req)

	if err != nil {
		return nil, errors.ErrTransport.WithMessagef("failed to reach gemini: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.ErrTransport.WithMessagef("gemini API error: %s", resp.Status)
	}

	dec := stream.NewMarkerDecoder()
	sess := &Session{ID: uuid.NewString(), Events: dec.Events()}

	go func() {
		defer resp.Body.Close()

		if err := dec.Decode(resp.Body); err != nil {
			log.Error("gemini stream aborted", "session", sess.ID, "error", err)
			sess.err = errors.ErrTransport.WithMessagef("stream read failed: %v", err)
		}

		dec.Close()
	}()

	return sess, nil
}

/*
Models lists the generative models available to the key, stripped of their
"models/" prefix and sorted by the capability heuristic, best first.
*/
func (prvdr *GoogleProvider) Models(ctx context.Context) ([]string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  prvdr.apiKey,
		Backend: genai.BackendGeminiAPI,
	})

	if err != nil {
		return nil, errors.ErrTransport.WithMessagef("failed to create gemini client: %v", err)
	}

	var names []string

	for model, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, errors.ErrTransport.WithMessagef("failed to list models: %v", err)
		}

		if !slices.Contains(model.SupportedActions, "generateContent") {
			continue
		}

		names = append(names, strings.TrimPrefix(model.Name, "models/"))
	}

	sortModels(names)

	return names, nil
}

// modelScore ranks a model name for display: bigger is better.
func modelScore(name string) int {
	score := 0

	if strings.Contains(name, "pro") {
		score += 100
	}

	if strings.Contains(name, "ultra") {
		score += 200
	}

	if strings.Contains(name, "flash") {
		score -= 50
	}

	if strings.Contains(name, "1.5") {
		score += 50
	}

	if strings.Contains(name, "latest") {
		score += 10
	}

	return score
}

func sortModels(names []string) {
	slices.SortStableFunc(names, func(a, b string) int {
		return modelScore(b) - modelScore(a)
	})
}
