package identify

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

type Service interface {
	Identify(ctx context.Context, req models.IdentifyRequest) (models.IdentifyResponse, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register mounts POST /identify.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/identify", h.Identify)
}

// Identify reconciles the posted email and phone number and returns the
// consolidated contact.
func (h *Handler) Identify(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "identify_handler.Identify")
	defer span.End()

	req, err := utils.BindRequest[models.IdentifyRequest](c)
	if err != nil {
		return err
	}

	resp, err := h.service.Identify(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}
