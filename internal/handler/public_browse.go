// Package handler exposes HTTP handlers for both authenticated and public endpoints.
// This file holds the guest-facing supply browse API: listing, detail and
// the cost quote.  None of these need a token.

package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/supply-share/internal/model"
	"github.com/iliyamo/supply-share/internal/service"
)

// PublicHandler serves unauthenticated supply browsing.
type PublicHandler struct {
	Supplies *service.SupplyService
}

func NewPublicHandler(s *service.SupplyService) *PublicHandler {
	if s == nil {
		panic("nil service passed to NewPublicHandler")
	}
	return &PublicHandler{Supplies: s}
}

type payoutAccountResp struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}

// ListSupplies handles GET /v1/supplies.  Optional query parameters are
// status, q, limit and offset.
func (h *PublicHandler) ListSupplies(c echo.Context) error {
	f := model.PostFilter{Query: c.QueryParam("q")}
	if s := strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))); s != "" {
		st, err := model.ParsePostStatus(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
		}
		f.Status = st
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		f.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid offset"})
		}
		f.Offset = n
	}
	posts, err := h.Supplies.ListPosts(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toPostList(posts)})
}

// GetSupply handles GET /v1/supplies/:id.
func (h *PublicHandler) GetSupply(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supply id"})
	}
	p, err := h.Supplies.GetPost(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toPostResp(p))
}

// Quote handles GET /v1/supplies/:id/quote and returns the per-participant
// amount a join right now would record.
func (h *PublicHandler) Quote(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid supply id"})
	}
	q, err := h.Supplies.Quote(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	resp := echo.Map{"unit_amount_preview": q.UnitAmountPreview}
	if a := q.PayoutAccount; a != nil {
		resp["payout_account"] = payoutAccountResp{
			BankName:      a.BankName,
			AccountNumber: a.AccountNumber,
			AccountHolder: a.HolderName,
		}
	}
	return c.JSON(http.StatusOK, resp)
}
