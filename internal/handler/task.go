package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/repository"
)

// TaskStore is the persistence used by TaskHandler.
type TaskStore interface {
	Create(ctx context.Context, t *model.Task) error
	GetByID(ctx context.Context, id uint64) (*model.Task, error)
	ListPending(ctx context.Context) ([]model.Task, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Task, error)
	Accept(ctx context.Context, taskID, helperID uint64) (*model.Task, error)
}

// TaskHandler serves help requests.
type TaskHandler struct {
	Tasks TaskStore
}

func NewTaskHandler(t TaskStore) *TaskHandler { return &TaskHandler{Tasks: t} }

type createTaskReq struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Reward  int64  `json:"reward"`
}

type taskResp struct {
	ID          uint64    `json:"id"`
	RequesterID uint64    `json:"requester_id"`
	HelperID    *uint64   `json:"helper_id,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Reward      int64     `json:"reward"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTaskResp(t *model.Task) taskResp {
	return taskResp{
		ID:          t.ID,
		RequesterID: t.RequesterID,
		HelperID:    t.HelperID,
		Title:       t.Title,
		Content:     t.Content,
		Reward:      t.Reward,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
	}
}

func toTaskList(tasks []model.Task) []taskResp {
	out := make([]taskResp, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResp(&tasks[i]))
	}
	return out
}

// ListPending handles GET /v1/tasks.
func (h *TaskHandler) ListPending(c echo.Context) error {
	tasks, err := h.Tasks.ListPending(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toTaskList(tasks)})
}

// Create handles POST /v1/tasks.
func (h *TaskHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createTaskReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	if req.Reward < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reward cannot be negative"})
	}
	t := &model.Task{RequesterID: uid, Title: req.Title, Content: req.Content, Reward: req.Reward}
	if err := h.Tasks.Create(c.Request().Context(), t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toTaskResp(t))
}

// Get handles GET /v1/tasks/:id.
func (h *TaskHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	t, err := h.Tasks.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toTaskResp(t))
}

// Mine handles GET /v1/me/tasks: tasks the caller requested or accepted.
func (h *TaskHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	tasks, err := h.Tasks.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toTaskList(tasks)})
}

// Accept handles POST /v1/tasks/:id/accept.
func (h *TaskHandler) Accept(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	t, err := h.Tasks.Accept(c.Request().Context(), id, uid)
	switch {
	case errors.Is(err, repository.ErrTaskNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	case errors.Is(err, repository.ErrSelfAccept):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "code": "SELF_ACCEPT"})
	case errors.Is(err, repository.ErrTaskNotPending):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "code": "NOT_PENDING"})
	case err != nil:
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toTaskResp(t))
}
