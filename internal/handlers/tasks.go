package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskhub/internal/middleware"
	"github.com/charlesng35/taskhub/internal/models"
	"github.com/charlesng35/taskhub/internal/services"
	"github.com/charlesng35/taskhub/pkg/errors"
	"github.com/charlesng35/taskhub/pkg/response"
)

// TaskHandler exposes task lifecycle endpoints.
type TaskHandler struct {
	tasks *services.TaskLifecycleService
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(tasks *services.TaskLifecycleService) (*TaskHandler, error) {
	if tasks == nil {
		return nil, errors.New("TASK_HANDLER", "task service is required", http.StatusInternalServerError)
	}
	return &TaskHandler{tasks: tasks}, nil
}

type createTaskRequest struct {
	Title         string     `json:"title" validate:"required,notblank,max=255"`
	Description   string     `json:"description"`
	Deadline      *time.Time `json:"deadline"`
	AttachmentRef *string    `json:"attachment_ref" validate:"omitempty,max=2048"`
	AssignedTo    []string   `json:"assigned_to" validate:"omitempty,dive,required,max=64"`
}

type updateTaskRequest struct {
	Title         *string    `json:"title" validate:"omitempty,notblank,max=255"`
	Description   *string    `json:"description"`
	Deadline      *time.Time `json:"deadline"`
	ClearDeadline bool       `json:"clear_deadline"`
	AttachmentRef *string    `json:"attachment_ref" validate:"omitempty,max=2048"`
	AssignedTo    []string   `json:"assigned_to" validate:"omitempty,dive,required,max=64"`
}

type submitTaskRequest struct {
	AttachmentRef *string `json:"attachment_ref" validate:"omitempty,max=2048"`
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Create(requestContext(c), services.CreateTaskInput{
		Title:         req.Title,
		Description:   req.Description,
		Deadline:      req.Deadline,
		AttachmentRef: req.AttachmentRef,
		CreatedBy:     c.GetString(middleware.CtxUserIDKey),
		AssigneeIDs:   req.AssignedTo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, task)
}

// List handles GET /api/tasks (admin overview with progress).
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.tasks.ListAll(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, tasks, &response.Meta{Total: len(tasks)})
}

// ListMine handles GET /api/tasks/me.
func (h *TaskHandler) ListMine(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	tasks, err := h.tasks.ListForUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, tasks, &response.Meta{Total: len(tasks)})
}

// Get handles GET /api/tasks/:id. Admins see the full task; assignees see their own view.
func (h *TaskHandler) Get(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("id"))

	if c.GetString(middleware.CtxRoleKey) == models.RoleAdmin {
		task, err := h.tasks.Get(requestContext(c), taskID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, task)
		return
	}

	view, err := h.tasks.GetForUser(requestContext(c), taskID, c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// Update handles PUT /api/tasks/:id.
func (h *TaskHandler) Update(c *gin.Context) {
	var req updateTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Update(requestContext(c), strings.TrimSpace(c.Param("id")), services.UpdateTaskInput{
		TaskPatch: services.TaskPatch{
			Title:         req.Title,
			Description:   req.Description,
			Deadline:      req.Deadline,
			ClearDeadline: req.ClearDeadline,
			AttachmentRef: req.AttachmentRef,
		},
		AssigneeIDs: req.AssignedTo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/:id.
func (h *TaskHandler) Delete(c *gin.Context) {
	task, err := h.tasks.Delete(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true, "id": task.ID})
}

// Submit handles POST /api/tasks/:id/submit. An empty body is a submission without attachment.
func (h *TaskHandler) Submit(c *gin.Context) {
	var req submitTaskRequest
	if !bindOptionalAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Submit(requestContext(c), services.SubmitTaskInput{
		TaskID:        strings.TrimSpace(c.Param("id")),
		UserID:        c.GetString(middleware.CtxUserIDKey),
		AttachmentRef: req.AttachmentRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, task)
}
