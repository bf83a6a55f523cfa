package service

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/theapemachine/bridge-go/pkg/errors"
	"github.com/theapemachine/bridge-go/pkg/stores"
	"github.com/theapemachine/bridge-go/pkg/swarm"
)

/*
BridgeServer exposes the bridge to the UI layer over HTTP.  Store operations
are plain synchronous JSON endpoints; the two streaming operations deliver
one SSE stream per session.  The server is safe for concurrent use because
the stores serialize their own mutations and every streaming session owns
its channel.
*/
type BridgeServer struct {
	app    *fiber.App
	bridge *stores.BridgeStore
	memory *stores.MemoryStore
	graph  *stores.GraphStore
	runner *swarm.Runner

	ollamaEndpoint string
	googleAPIKey   string
}

type BridgeServerOption func(*BridgeServer)

func NewBridgeServer(options ...BridgeServerOption) *BridgeServer {
	srv := &BridgeServer{
		app: fiber.New(fiber.Config{
			AppName:           "bridge-go",
			ServerHeader:      "Bridge-Server",
			StreamRequestBody: true,
		}),
		ollamaEndpoint: "http://localhost:11434",
	}

	for _, option := range options {
		option(srv)
	}

	srv.routes()

	return srv
}

func WithStores(
	bridge *stores.BridgeStore, memory *stores.MemoryStore, graph *stores.GraphStore,
) BridgeServerOption {
	return func(srv *BridgeServer) {
		srv.bridge = bridge
		srv.memory = memory
		srv.graph = graph
	}
}

func WithRunner(runner *swarm.Runner) BridgeServerOption {
	return func(srv *BridgeServer) {
		srv.runner = runner
	}
}

// WithOllamaEndpoint sets the default local server used when a chat request
// does not name one.
func WithOllamaEndpoint(endpoint string) BridgeServerOption {
	return func(srv *BridgeServer) {
		srv.ollamaEndpoint = endpoint
	}
}

// WithGoogleAPIKey sets the default key used when a chat request does not
// carry one.  Credentials are passed through, never stored.
func WithGoogleAPIKey(apiKey string) BridgeServerOption {
	return func(srv *BridgeServer) {
		srv.googleAPIKey = apiKey
	}
}

func (srv *BridgeServer) routes() {
	srv.app.Use(logger.New(logger.Config{
		// Skip logging for the streaming endpoints to reduce noise
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/chat/stream" || c.Path() == "/swarm"
		},
	}))

	// The health handler answers every GET it sees, so it gets its own
	// routes instead of a spot in the middleware chain.
	srv.app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	srv.app.Get(healthcheck.ReadinessEndpoint, healthcheck.New())

	srv.app.Get("/", srv.handleRoot)

	srv.app.Post("/chat/stream", srv.handleChatStream)
	srv.app.Post("/swarm", srv.handleSwarm)

	srv.app.Get("/bridge", srv.handleBridgeState)
	srv.app.Post("/bridge/requests", srv.handleEnqueue)
	srv.app.Post("/bridge/auto-approve", srv.handleAutoApprove)
	srv.app.Post("/bridge/requests/:id/approve", srv.handleApprove)
	srv.app.Post("/bridge/requests/:id/reject", srv.handleReject)

	srv.app.Get("/memories/:agent", srv.handleQueryMemories)
	srv.app.Post("/memories", srv.handleAddMemory)
	srv.app.Delete("/memories/:agent", srv.handleClearMemories)

	srv.app.Get("/graph", srv.handleGraph)
	srv.app.Post("/graph/nodes", srv.handleAddNode)
	srv.app.Post("/graph/edges", srv.handleAddEdge)

	srv.app.Get("/models/ollama", srv.handleOllamaModels)
	srv.app.Get("/models/gemini", srv.handleGeminiModels)
}

/*
Start blocks serving the bridge on the given address.
*/
func (srv *BridgeServer) Start(addr string) error {
	return srv.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Test runs a request through the router without a network listener.
func (srv *BridgeServer) Test(req *http.Request, config ...fiber.TestConfig) (*http.Response, error) {
	return srv.app.Test(req, config...)
}

func (srv *BridgeServer) handleRoot(ctx fiber.Ctx) error {
	return ctx.SendString("OK")
}

// fail maps the error taxonomy onto HTTP statuses: validation errors were
// rejected before any side effect, transport errors surface exactly once,
// anything else is internal.
func fail(ctx fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	switch errors.Code(err) {
	case errors.ErrValidation.Code:
		status = fiber.StatusBadRequest
	case errors.ErrTransport.Code:
		status = fiber.StatusBadGateway
	}

	return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
}
