package controller

import (
	"strconv"

	"workflow-agent-be/internal/dto"
	"workflow-agent-be/internal/pkg/serverutils"
	"workflow-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	HeaderCache           = "X-Cache"
	HeaderHistoryDegraded = "X-History-Degraded"
)

type IWorkflowController interface {
	RegisterRoutes(r fiber.Router)
	Generate(ctx *fiber.Ctx) error
	Simulate(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	GetConnectors(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type workflowController struct {
	service   service.IWorkflowAgentService
	jwtSecret string
}

func NewWorkflowController(service service.IWorkflowAgentService, jwtSecret string) IWorkflowController {
	return &workflowController{service: service, jwtSecret: jwtSecret}
}

func (c *workflowController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/workflow/v1")
	h.Get("/health", c.Health)

	auth := serverutils.NewJwtMiddleware(c.jwtSecret)
	h.Post("/generate", auth, c.Generate)
	h.Post("/simulate", auth, c.Simulate)
	h.Get("/sessions/:id/history", auth, c.GetHistory)
	h.Get("/connectors", auth, c.GetConnectors)
}

// Generate writes the envelope as the body. Cache and degradation flags go
// into headers so that a replay returns the same bytes.
func (c *workflowController) Generate(ctx *fiber.Ctx) error {
	var req dto.HandlePromptRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Handle(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	cache := "MISS"
	if res.Cached {
		cache = "HIT"
	}
	ctx.Set(HeaderCache, cache)
	ctx.Set(HeaderHistoryDegraded, strconv.FormatBool(res.Degraded))
	return ctx.JSON(serverutils.SuccessResponse("Success handle prompt", res))
}

func (c *workflowController) Simulate(ctx *fiber.Ctx) error {
	var req dto.SimulateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Simulate(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success simulate workflow", res))
}

func (c *workflowController) GetHistory(ctx *fiber.Ctx) error {
	res, err := c.service.GetHistory(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session history", res))
}

func (c *workflowController) GetConnectors(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get connectors", c.service.GetConnectors(ctx.UserContext())))
}

func (c *workflowController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("OK", c.service.Health(ctx.UserContext())))
}
