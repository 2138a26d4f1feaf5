package server

import (
	"errors"

	"github.com/spigell/talentcore/internal/ai"
	"github.com/spigell/talentcore/internal/analytics"
	"github.com/spigell/talentcore/internal/content"
	"github.com/spigell/talentcore/internal/matching"
	"github.com/spigell/talentcore/internal/rag"
	"github.com/spigell/talentcore/internal/recommend"
	"github.com/spigell/talentcore/internal/vectorindex"
	"github.com/spigell/talentcore/internal/visibility"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func statusFor(err error) int {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr),
		errors.Is(err, errBadRequest),
		errors.Is(err, rag.ErrEmptyQuery),
		errors.Is(err, visibility.ErrUnknownPlan),
		errors.Is(err, matching.ErrInvalidLimit),
		errors.Is(err, recommend.ErrInvalidLimit),
		errors.Is(err, recommend.ErrInvalidOutcome),
		errors.Is(err, analytics.ErrInvalidPeriod),
		errors.Is(err, vectorindex.ErrInvalidFilter),
		errors.Is(err, ai.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, content.ErrNotFound):
		return fiber.StatusNotFound
	case ai.IsUnavailable(err):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	message := err.Error()

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", requestID(c)),
			zap.Error(err),
		)
		if status == fiber.StatusInternalServerError {
			message = "internal error"
		}
	}

	return c.Status(status).JSON(errorBody{Error: message, RequestID: requestID(c)})
}
