package contacts

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

type Service interface {
	Lookup(ctx context.Context, contactID int64) (models.IdentifyResponse, error)
	List(ctx context.Context) (models.ContactList, error)
	Reset(ctx context.Context) (models.MessageResponse, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the contact routes on g, normally the /contacts group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.DELETE("", h.Reset)
	g.GET("/:id/identity", h.Identity)
}

type identityRequest struct {
	ContactID int64 `param:"id" validate:"gt=0"`
}

// List dumps every stored contact row.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "contacts_handler.List")
	defer span.End()

	list, err := h.service.List(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, list)
}

// Reset deletes every contact and restarts id assignment.
func (h *Handler) Reset(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "contacts_handler.Reset")
	defer span.End()

	msg, err := h.service.Reset(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, msg)
}

// Identity returns the consolidated contact for the cluster containing :id.
func (h *Handler) Identity(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "contacts_handler.Identity")
	defer span.End()

	req, err := utils.BindRequest[identityRequest](c)
	if err != nil {
		return err
	}

	resp, err := h.service.Lookup(ctx, req.ContactID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}
