package service

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/theapemachine/bridge-go/pkg/errors"
	"github.com/theapemachine/bridge-go/pkg/provider"
)

func (srv *BridgeServer) handleBridgeState(ctx fiber.Ctx) error {
	return ctx.JSON(srv.bridge.State())
}

type enqueueRequest struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (srv *BridgeServer) handleEnqueue(ctx fiber.Ctx) error {
	var req enqueueRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fail(ctx, errors.ErrValidation.WithMessagef("invalid request body: %v", err))
	}

	data, err := srv.bridge.Enqueue(req.ID, req.Message)

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(data)
}

type autoApproveRequest struct {
	Enabled bool `json:"enabled"`
}

func (srv *BridgeServer) handleAutoApprove(ctx fiber.Ctx) error {
	var req autoApproveRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fail(ctx, errors.ErrValidation.WithMessagef("invalid request body: %v", err))
	}

	data, err := srv.bridge.SetAutoApprove(req.Enabled)

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(data)
}

func (srv *BridgeServer) handleApprove(ctx fiber.Ctx) error {
	data, err := srv.bridge.Approve(ctx.Params("id"))

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(data)
}

func (srv *BridgeServer) handleReject(ctx fiber.Ctx) error {
	data, err := srv.bridge.Reject(ctx.Params("id"))

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(data)
}

type addMemoryRequest struct {
	Agent      string  `json:"agent"`
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
}

func (srv *BridgeServer) handleAddMemory(ctx fiber.Ctx) error {
	var req addMemoryRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fail(ctx, errors.ErrValidation.WithMessagef("invalid request body: %v", err))
	}

	entry, err := srv.memory.Add(req.Agent, req.Content, req.Importance)

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(entry)
}

func (srv *BridgeServer) handleQueryMemories(ctx fiber.Ctx) error {
	topK := 10

	if raw := ctx.Query("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)

		if err != nil || parsed < 0 {
			return fail(ctx, errors.ErrValidation.WithMessagef("top_k must be a non-negative integer"))
		}

		topK = parsed
	}

	return ctx.JSON(srv.memory.Query(ctx.Params("agent"), topK))
}

func (srv *BridgeServer) handleClearMemories(ctx fiber.Ctx) error {
	removed, err := srv.memory.Clear(ctx.Params("agent"))

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{"removed": removed})
}

func (srv *BridgeServer) handleGraph(ctx fiber.Ctx) error {
	return ctx.JSON(srv.graph.Graph())
}

type addNodeRequest struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

func (srv *BridgeServer) handleAddNode(ctx fiber.Ctx) error {
	var req addNodeRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fail(ctx, errors.ErrValidation.WithMessagef("invalid request body: %v", err))
	}

	node, err := srv.graph.AddNode(req.ID, req.Type, req.Label)

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(node)
}

type addEdgeRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

func (srv *BridgeServer) handleAddEdge(ctx fiber.Ctx) error {
	var req addEdgeRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fail(ctx, errors.ErrValidation.WithMessagef("invalid request body: %v", err))
	}

	edge, err := srv.graph.AddEdge(req.Source, req.Target, req.Label)

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(edge)
}

func (srv *BridgeServer) handleOllamaModels(ctx fiber.Ctx) error {
	endpoint := ctx.Query("endpoint", srv.ollamaEndpoint)

	prvdr := provider.NewOllamaProvider(provider.WithEndpoint(endpoint))

	names, err := prvdr.Models(ctx.RequestCtx())

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{"models": names})
}

func (srv *BridgeServer) handleGeminiModels(ctx fiber.Ctx) error {
	apiKey := ctx.Query("api_key", srv.googleAPIKey)

	prvdr := provider.NewGoogleProvider(provider.WithAPIKey(apiKey))

	names, err := prvdr.Models(ctx.RequestCtx())

	if err != nil {
		return fail(ctx, err)
	}

	return ctx.JSON(fiber.Map{"models": names})
}
