package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/directory"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/locking"
	"github.com/spec-kit/account-service/internal/service"
	"github.com/spec-kit/account-service/internal/tasks"
	apperrors "github.com/spec-kit/account-service/pkg/util"
)

// maxWaitSeconds caps how long a task status poll may block.
const maxWaitSeconds = 60

// RequestsHandler manages the public submission endpoints.
type RequestsHandler struct {
	service *service.AccountService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(accountService *service.AccountService) *RequestsHandler {
	return &RequestsHandler{service: accountService}
}

// Submit POST /account/requests.
func (h *RequestsHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Identifier == "" || req.FullName == "" || req.ContactEmail == "" {
		return apperrors.NewValidationError("identifier, full_name, contact_email required", nil)
	}
	if !req.Policy.Valid() {
		return apperrors.NewValidationError("policy must be WARN, SUBMIT or CREATE", nil)
	}

	secret, err := base64.StdEncoding.DecodeString(req.EncryptedSecret)
	if err != nil {
		return apperrors.NewValidationError("encrypted_secret must be base64", nil)
	}
	if !req.IsGroup && len(secret) == 0 {
		return apperrors.NewValidationError("encrypted_secret required", nil)
	}

	input := domain.NewAccountRequest{
		Identifier:      strings.TrimSpace(req.Identifier),
		FullName:        strings.TrimSpace(req.FullName),
		IsGroup:         req.IsGroup,
		PersonalRef:     req.PersonalRef,
		OrgRef:          req.OrgRef,
		ContactEmail:    strings.TrimSpace(req.ContactEmail),
		EncryptedSecret: secret,
		Policy:          req.Policy,
	}

	result, err := h.service.Submit(c.UserContext(), &input)
	if err != nil {
		if directory.IsTransport(err) {
			return apperrors.NewUnavailable(err)
		}
		return err
	}

	resp := dto.SubmitAccountResponse{
		Status: result.Status,
		Issues: issueResponses(result.Issues),
	}
	if result.Task != nil {
		resp.TaskID = result.Task.ID
	}

	status := http.StatusOK
	if result.Status == domain.StatusAccepted {
		status = http.StatusAccepted
	}
	return c.Status(status).JSON(fiber.Map{"data": resp})
}

// TaskStatus GET /account/tasks/:id. An optional wait_seconds query blocks
// until the task finishes or the wait expires.
func (h *RequestsHandler) TaskStatus(c *fiber.Ctx) error {
	task, ok := h.service.Task(c.Params("id"))
	if !ok {
		return apperrors.NewNotFound("task", nil)
	}

	if wait := c.QueryInt("wait_seconds"); wait > 0 {
		if wait > maxWaitSeconds {
			wait = maxWaitSeconds
		}
		waitCtx, cancel := context.WithTimeout(c.UserContext(), time.Duration(wait)*time.Second)
		_, _ = task.Wait(waitCtx)
		cancel()
	}

	return c.JSON(fiber.Map{"data": taskStatusResponse(task)})
}

func taskStatusResponse(task *tasks.Task) dto.TaskStatusResponse {
	lines := task.Status()
	progress := make([]dto.TaskStatusLine, 0, len(lines))
	for _, line := range lines {
		progress = append(progress, dto.TaskStatusLine{At: line.At, Line: line.Line})
	}

	resp := dto.TaskStatusResponse{
		ID:       task.ID,
		Name:     task.Name,
		Progress: progress,
	}

	outcome, done, err := task.Result()
	resp.Done = done
	if done {
		if outcome != nil {
			resp.Outcome = &dto.TaskOutcomeResponse{
				Status:         outcome.Status,
				Issues:         issueResponses(outcome.Issues),
				CompletedSteps: outcome.CompletedSteps,
			}
		}
		if err != nil {
			resp.Error = taskErrorMessage(err)
		}
	}
	return resp
}

// taskErrorMessage renders a task failure for the public polling endpoint.
// Backend outages and lock contention get the generic retry text; the full
// error stays in the task registry's logs.
func taskErrorMessage(err error) string {
	var creationErr *service.CreationError
	switch {
	case directory.IsTransport(err),
		errors.Is(err, locking.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return "service temporarily unavailable, please try again later"
	case errors.As(err, &creationErr):
		return fmt.Sprintf("creation failed at %q", creationErr.Step)
	default:
		return "creation failed"
	}
}

func issueResponses(issues []domain.Issue) []dto.IssueResponse {
	out := make([]dto.IssueResponse, 0, len(issues))
	for _, issue := range issues {
		out = append(out, dto.IssueResponse{
			Severity: issue.Severity,
			Code:     issue.Code,
			Message:  issue.Message,
		})
	}
	return out
}
