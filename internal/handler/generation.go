package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pagecraft/api/internal/model"
	"github.com/pagecraft/api/internal/pipeline"
	"github.com/pagecraft/api/internal/service"
	"github.com/pagecraft/api/pkg/response"
)

type GenerationHandler struct {
	service   *service.GenerationService
	validator *validator.Validate
}

func NewGenerationHandler(svc *service.GenerationService, v *validator.Validate) *GenerationHandler {
	return &GenerationHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/generation/start
// @Summary      Start generation job
// @Description  Queue an asynchronous multi-pass generation job for a content brief
// @Tags         Generation
// @Accept       json
// @Produce      json
// @Param        request body model.GenerationStartRequest true "Generation start request"
// @Success      202 {object} model.GenerationStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/generation/start [post]
func (h *GenerationHandler) Start(c *fiber.Ctx) error {
	var req model.GenerationStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartGeneration(c.Context(), &req)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyBrief) {
			return response.ValidationError(c, "Brief needs at least one outline section", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/generation/status/:jobId
// @Summary      Get generation job status
// @Description  Get the lifecycle state and current pass of a generation job
// @Tags         Generation
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.GenerationStatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/generation/status/{jobId} [get]
func (h *GenerationHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Progress handles GET /api/generation/progress/:jobId
// @Summary      Get generation job progress
// @Description  Get the per-pass progress snapshot of a generation job
// @Tags         Generation
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ProgressSnapshot
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/generation/progress/{jobId} [get]
func (h *GenerationHandler) Progress(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetProgress(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/generation/result/:jobId
// @Summary      Get generation result
// @Description  Get the finished document, metadata and change log of a completed job
// @Tags         Generation
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.GenerationResultResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/generation/result/{jobId} [get]
func (h *GenerationHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetResult(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrResultBlocked) {
			return response.GateBlocked(c, "Document was blocked by the quality gate")
		}
		if errors.Is(err, service.ErrJobNotDone) {
			return response.ValidationError(c, "Job not completed yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/generation/cancel/:jobId
// @Summary      Cancel generation job
// @Description  Request cancellation of a queued or running generation job
// @Tags         Generation
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.GenerationCancelResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/generation/cancel/{jobId} [post]
func (h *GenerationHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Cancel(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrNotCancelable) {
			return response.ValidationError(c, "Job already finished", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
