package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/service"
)

// SupplyHandler serves the authenticated supply endpoints.  Every method
// expects JWTAuth to have run.
type SupplyHandler struct {
	Supplies *service.SupplyService
}

func NewSupplyHandler(s *service.SupplyService) *SupplyHandler {
	if s == nil {
		panic("nil service passed to NewSupplyHandler")
	}
	return &SupplyHandler{Supplies: s}
}

type createSupplyReq struct {
	Title                  string  `json:"title"`
	Content                string  `json:"content"`
	ImageURL               string  `json:"image_url"`
	TotalAmount            int64   `json:"total_amount"`
	MaxParticipants        int     `json:"max_participants"`
	ApplyInput             string  `json:"apply_input"`
	ExecuteInput           string  `json:"execute_input"`
	DemandPostID           *uint64 `json:"demand_post_id"`
	DemandSnapshotTitle    string  `json:"demand_snapshot_title"`
	DemandSnapshotContent  string  `json:"demand_snapshot_content"`
	DemandSnapshotImageURL string  `json:"demand_snapshot_image_url"`
	PayoutAccountID        *uint64 `json:"payout_account_id"`
}

// Create handles POST /v1/supplies.
func (h *SupplyHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createSupplyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	p, err := h.Supplies.CreatePost(c.Request().Context(), uid, service.CreatePostInput{
		Title:        req.Title,
		Content:      req.Content,
		ImageURL:     req.ImageURL,
		TotalAmount:  req.TotalAmount,
		Capacity:     req.MaxParticipants,
		ApplyInput:   req.ApplyInput,
		ExecuteInput: req.ExecuteInput,
		DemandPostID: req.DemandPostID,
		Demand: model.DemandSnapshot{
			Title:    req.DemandSnapshotTitle,
			Content:  req.DemandSnapshotContent,
			ImageURL: req.DemandSnapshotImageURL,
		},
		PayoutAccountID: req.PayoutAccountID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toPostResp(p))
}

// Join handles POST /v1/supplies/:id/join with an optional {"note": "..."}.
// A repeated join returns the existing participation unchanged apart from
// the note.
func (h *SupplyHandler) Join(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supply id"})
	}
	var body struct {
		Note *string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	p, err := h.Supplies.Join(c.Request().Context(), uid, id, body.Note)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toParticipationResp(p))
}

// Leave handles DELETE /v1/supplies/:id/join.
func (h *SupplyHandler) Leave(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supply id"})
	}
	if err := h.Supplies.Leave(c.Request().Context(), uid, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type applicantResp struct {
	ParticipationID uint64    `json:"participation_id"`
	UserID          uint64    `json:"user_id"`
	Username        string    `json:"username"`
	UnitAmount      int64     `json:"unit_amount"`
	Status          string    `json:"status"`
	JoinedAt        time.Time `json:"joined_at"`
}

// Applicants handles GET /v1/supplies/:id/applicants (author only).
func (h *SupplyHandler) Applicants(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supply id"})
	}
	list, err := h.Supplies.Applicants(c.Request().Context(), uid, id)
	if err != nil {
		return writeError(c, err)
	}
	results := make([]applicantResp, 0, len(list))
	for _, a := range list {
		results = append(results, applicantResp{
			ParticipationID: a.ParticipationID,
			UserID:          a.UserID,
			Username:        a.DisplayName,
			UnitAmount:      a.UnitAmount,
			Status:          a.Status.String(),
			JoinedAt:        a.JoinedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(results), "results": results})
}

// Confirm handles POST /v1/supplies/:id/participations/:pid/confirm.
func (h *SupplyHandler) Confirm(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	pid, pok := pathID(c, "pid")
	if !ok || !pok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	p, err := h.Supplies.Confirm(c.Request().Context(), uid, id, pid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toParticipationResp(p))
}

// Execute handles POST /v1/supplies/:id/execute.
func (h *SupplyHandler) Execute(c echo.Context) error {
	return h.lifecycle(c, h.Supplies.Execute)
}

// Cancel handles POST /v1/supplies/:id/cancel.
func (h *SupplyHandler) Cancel(c echo.Context) error {
	return h.lifecycle(c, h.Supplies.CancelPost)
}

func (h *SupplyHandler) lifecycle(c echo.Context, op func(ctx context.Context, actorID, postID uint64) (*model.Post, error)) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supply id"})
	}
	p, err := op(c.Request().Context(), uid, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPostResp(p))
}

type memberResp struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Note        string `json:"note,omitempty"`
}

type myPostResp struct {
	ID              uint64       `json:"id"`
	Title           string       `json:"title"`
	Status          string       `json:"status"`
	DaysLeft        int          `json:"days_left"`
	JoinMemberCount int          `json:"join_member_count"`
	GoalMemberCount int          `json:"goal_member_count"`
	CommentCount    int          `json:"comment_count"`
	JoinMembers     []memberResp `json:"join_members"`
}

// MyPosts handles GET /v1/me/supplies?order=newest|oldest|comment|enddate.
func (h *SupplyHandler) MyPosts(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rows, err := h.Supplies.MyPosts(c.Request().Context(), uid, model.ParseListOrder(c.QueryParam("order")))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]myPostResp, 0, len(rows))
	for _, r := range rows {
		members := make([]memberResp, 0, len(r.Members))
		for _, m := range r.Members {
			members = append(members, memberResp{Name: m.Name, PhoneNumber: m.PhoneNumber, Note: m.Note})
		}
		out = append(out, myPostResp{
			ID:              r.ID,
			Title:           r.Title,
			Status:          r.Status.String(),
			DaysLeft:        r.DaysLeft,
			JoinMemberCount: r.JoinMemberCount,
			GoalMemberCount: r.Capacity,
			CommentCount:    r.CommentCount,
			JoinMembers:     members,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// MyJoins handles GET /v1/me/joins?order=newest|oldest|comment.
func (h *SupplyHandler) MyJoins(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	posts, err := h.Supplies.MyJoins(c.Request().Context(), uid, model.ParseListOrder(c.QueryParam("order")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toPostList(posts)})
}
