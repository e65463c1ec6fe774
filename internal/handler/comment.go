package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/repository"
)

// maxCommentLength bounds comment content in runes.
const maxCommentLength = 1000

// CommentStore persists comments for one kind of parent.
type CommentStore interface {
	Create(ctx context.Context, c *model.Comment) error
	ListByParent(ctx context.Context, parentID uint64) ([]model.Comment, error)
}

// CommentHandler serves comment threads under supply posts and tasks.
type CommentHandler struct {
	Posts CommentStore
	Tasks CommentStore
}

func NewCommentHandler(posts, tasks CommentStore) *CommentHandler {
	return &CommentHandler{Posts: posts, Tasks: tasks}
}

type commentReq struct {
	Content string `json:"content"`
}

type commentResp struct {
	ID         uint64    `json:"id"`
	UserID     uint64    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *CommentHandler) create(c echo.Context, store CommentStore) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	parentID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req commentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content is required"})
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content is too long"})
	}
	cm := &model.Comment{ParentID: parentID, UserID: uid, Content: content}
	if err := store.Create(c.Request().Context(), cm); err != nil {
		if errors.Is(err, repository.ErrParentNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"detail": "comment created", "id": cm.ID})
}

func (h *CommentHandler) list(c echo.Context, store CommentStore) error {
	parentID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	comments, err := store.ListByParent(c.Request().Context(), parentID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]commentResp, 0, len(comments))
	for _, cm := range comments {
		out = append(out, commentResp{
			ID:         cm.ID,
			UserID:     cm.UserID,
			AuthorName: cm.AuthorName,
			Content:    cm.Content,
			CreatedAt:  cm.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// CreateSupplyComment handles POST /v1/supplies/:id/comments.
func (h *CommentHandler) CreateSupplyComment(c echo.Context) error { return h.create(c, h.Posts) }

// ListSupplyComments handles GET /v1/supplies/:id/comments.
func (h *CommentHandler) ListSupplyComments(c echo.Context) error { return h.list(c, h.Posts) }

func (h *CommentHandler) CreateTaskComment(c echo.Context) error { return h.create(c, h.Tasks) }

func (h *CommentHandler) ListTaskComments(c echo.Context) error { return h.list(c, h.Tasks) }
