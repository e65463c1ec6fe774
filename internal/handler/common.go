package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/supply-share/internal/middleware"
	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/repository"
	"github.com/iliyamo/supply-share/internal/service"
)

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the id JWTAuth stored on the context.
func getUserID(c echo.Context) (uint64, error) {
	if id, ok := middleware.UserID(c); ok {
		return id, nil
	}
	return 0, errNoUser
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

// writeError maps service and repository errors to the JSON error shape
// {"error": message, "code": reason}.
func writeError(c echo.Context, err error) error {
	var ve *service.ValidationError
	code := service.Code(err)
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error(), "code": code})
	case errors.Is(err, service.ErrForbidden), errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "code": "FORBIDDEN"})
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Message, "field": ve.Field, "code": code})
	case code != "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "code": code})
	case errors.Is(err, repository.ErrDuplicateParticipation), errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "CONFLICT"})
	}
	c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

type demandResp struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

// postResp is the public representation of a supply post.
type postResp struct {
	ID                uint64     `json:"id"`
	AuthorID          uint64     `json:"author_id"`
	DemandPostID      *uint64    `json:"demand_post_id,omitempty"`
	PayoutAccountID   *uint64    `json:"payout_account_id,omitempty"`
	Title             string     `json:"title"`
	Content           string     `json:"content"`
	ImageURL          string     `json:"image_url,omitempty"`
	Demand            demandResp `json:"demand_snapshot"`
	TotalAmount       int64      `json:"total_amount"`
	MaxParticipants   int        `json:"max_participants"`
	UnitAmountPreview int64      `json:"unit_amount_preview"`
	ApplyDeadline     time.Time  `json:"apply_deadline"`
	ExecuteTime       time.Time  `json:"execute_time"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toPostResp(p *model.Post) postResp {
	return postResp{
		ID:                p.ID,
		AuthorID:          p.AuthorID,
		DemandPostID:      p.DemandPostID,
		PayoutAccountID:   p.PayoutAccountID,
		Title:             p.Title,
		Content:           p.Content,
		ImageURL:          p.ImageURL,
		Demand:            demandResp{Title: p.Demand.Title, Content: p.Demand.Content, ImageURL: p.Demand.ImageURL},
		TotalAmount:       p.TotalAmount,
		MaxParticipants:   p.Capacity,
		UnitAmountPreview: service.UnitPreview(p),
		ApplyDeadline:     p.ApplyDeadline,
		ExecuteTime:       p.ExecuteTime,
		Status:            p.Status.String(),
		CreatedAt:         p.CreatedAt,
	}
}

func toPostList(posts []model.Post) []postResp {
	out := make([]postResp, 0, len(posts))
	for i := range posts {
		out = append(out, toPostResp(&posts[i]))
	}
	return out
}

type participationResp struct {
	ID         uint64    `json:"id"`
	PostID     uint64    `json:"post_id"`
	UserID     uint64    `json:"user_id"`
	Note       string    `json:"note"`
	UnitAmount int64     `json:"unit_amount"`
	Status     string    `json:"status"`
	JoinedAt   time.Time `json:"joined_at"`
}

func toParticipationResp(p *model.Participation) participationResp {
	return participationResp{
		ID:         p.ID,
		PostID:     p.PostID,
		UserID:     p.UserID,
		Note:       p.Note,
		UnitAmount: p.UnitAmount,
		Status:     p.Status.String(),
		JoinedAt:   p.JoinedAt,
	}
}
