package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/directory"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// ReviewHandler manages staff review of queued requests.
type ReviewHandler struct {
	service *service.AccountService
}

// NewReviewHandler constructs handler.
func NewReviewHandler(accountService *service.AccountService) *ReviewHandler {
	return &ReviewHandler{service: accountService}
}

// ListPending GET /account/requests.
func (h *ReviewHandler) ListPending(c *fiber.Ctx) error {
	pending, err := h.service.ListPending(c.UserContext())
	if err != nil {
		return err
	}

	items := make([]dto.PendingRequestResponse, 0, len(pending))
	for i := range pending {
		items = append(items, pendingResponse(&pending[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Approve POST /account/requests/:identifier/approve. Approving an
// identifier that is no longer queued is a no-op, reported as such.
func (h *ReviewHandler) Approve(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	task, err := h.service.Approve(c.UserContext(), identifier)
	if err != nil {
		if directory.IsTransport(err) {
			return apperrors.NewUnavailable(err)
		}
		return err
	}

	resp := dto.ReviewActionResponse{Identifier: identifier}
	if task != nil {
		resp.Applied = true
		resp.TaskID = task.ID
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": resp})
}

// Reject POST /account/requests/:identifier/reject. Rejecting an identifier
// that is no longer queued is a no-op.
func (h *ReviewHandler) Reject(c *fiber.Ctx) error {
	identifier := c.Params("identifier")

	if err := h.service.Reject(c.UserContext(), identifier); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ReviewActionResponse{
		Identifier: identifier,
		Applied:    true,
	}})
}

func pendingResponse(stored *domain.StoredRequest) dto.PendingRequestResponse {
	return dto.PendingRequestResponse{
		ID:           stored.ID,
		Identifier:   stored.Identifier,
		FullName:     stored.FullName,
		IsGroup:      stored.IsGroup,
		ContactEmail: stored.ContactEmail,
		Reason:       stored.Reason,
		CreatedAt:    stored.CreatedAt,
	}
}
