package service

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/theapemachine/bridge-go/pkg/errors"
	"github.com/theapemachine/bridge-go/pkg/provider"
	"github.com/theapemachine/bridge-go/pkg/stream"
)

type chatStreamRequest struct {
	Backend  string             `json:"backend"`
	Model    string             `json:"model"`
	Messages []provider.Message `json:"messages"`
	Endpoint string             `json:"endpoint"`
	APIKey   string             `json:"api_key"`
}

type swarmRequest struct {
	Objective string `json:"objective"`
}

// providerFor resolves the backend named by the request, falling back to the
// server-wide defaults for endpoint and credentials.
func (srv *BridgeServer) providerFor(req chatStreamRequest) (provider.Interface, error) {
	switch req.Backend {
	case "ollama", "":
		endpoint := req.Endpoint

		if endpoint == "" {
			endpoint = srv.ollamaEndpoint
		}

		return provider.NewOllamaProvider(provider.WithEndpoint(endpoint)), nil
	case "gemini", "google":
		apiKey := req.APIKey

		if apiKey == "" {
			apiKey = srv.googleAPIKey
		}

		return provider.NewGoogleProvider(provider.WithAPIKey(apiKey)), nil
	default:
		return nil, errors.ErrValidation.WithMessagef("unknown backend %q", req.Backend)
	}
}

func (srv *BridgeServer) handleChatStream(ctx fiber.Ctx) error {
	var req chatStreamRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fail(ctx, errors.ErrValidation.WithMessagef("invalid request body: %v", err))
	}

	if req.Model == "" {
		return fail(ctx, errors.ErrValidation.WithMessagef("model is required"))
	}

	prvdr, err := srv.providerFor(req)

	if err != nil {
		return fail(ctx, err)
	}

	sess, err := prvdr.Stream(ctx.RequestCtx(), req.Messages, req.Model)

	if err != nil {
		return fail(ctx, err)
	}

	log.Info("chat stream opened", "session", sess.ID, "backend", req.Backend, "model", req.Model)

	return streamEvents(ctx, sess.Events, sess.Err)
}

func (srv *BridgeServer) handleSwarm(ctx fiber.Ctx) error {
	var req swarmRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fail(ctx, errors.ErrValidation.WithMessagef("invalid request body: %v", err))
	}

	events, err := srv.runner.Spawn(ctx.RequestCtx(), req.Objective)

	if err != nil {
		return fail(ctx, err)
	}

	return streamEvents(ctx, events, nil)
}

/*
streamEvents relays a normalized event channel to the client as one SSE
stream, one data frame per event.  The channel is always drained to
completion even when the client goes away, so the producing goroutines never
block on a dead connection.  When finalErr reports a terminal failure after
the channel closes, one trailing error frame is emitted.
*/
func streamEvents(ctx fiber.Ctx, events <-chan stream.Event, finalErr func() error) error {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, canFlush := w.(http.Flusher)

		writeFrame := func(payload any) {
			raw, err := json.Marshal(payload)

			if err != nil {
				log.Error("failed to encode stream frame", "error", err)
				return
			}

			if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
				// Keep draining below; the producer must not be abandoned.
				log.Warn("client disconnected mid-stream", "error", err)
				return
			}

			if canFlush {
				flusher.Flush()
			}
		}

		for evt := range events {
			writeFrame(evt)
		}

		if finalErr != nil {
			if err := finalErr(); err != nil {
				writeFrame(fiber.Map{"error": err.Error()})
			}
		}
	}

	return fiberadaptor.HTTPHandler(http.HandlerFunc(handler))(ctx)
}
