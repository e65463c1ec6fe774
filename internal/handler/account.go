package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/supply-share/internal/model"
)

// AccountStore persists payout accounts.
type AccountStore interface {
	Create(ctx context.Context, a *model.PayoutAccount) error
	ListByUser(ctx context.Context, userID uint64) ([]model.PayoutAccount, error)
}

// AccountHandler lets users register the bank accounts their posts point to.
type AccountHandler struct {
	Accounts AccountStore
}

func NewAccountHandler(a AccountStore) *AccountHandler { return &AccountHandler{Accounts: a} }

type accountReq struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"holder_name"`
}

type accountResp struct {
	ID            uint64    `json:"id"`
	BankName      string    `json:"bank_name"`
	AccountNumber string    `json:"account_number"`
	HolderName    string    `json:"holder_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// Create handles POST /v1/accounts.
func (h *AccountHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req accountReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.BankName) == "" || strings.TrimSpace(req.AccountNumber) == "" || strings.TrimSpace(req.HolderName) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bank_name, account_number and holder_name required"})
	}
	a := &model.PayoutAccount{UserID: uid, BankName: req.BankName, AccountNumber: req.AccountNumber, HolderName: req.HolderName}
	if err := h.Accounts.Create(c.Request().Context(), a); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, accountResp{
		ID: a.ID, BankName: a.BankName, AccountNumber: a.AccountNumber, HolderName: a.HolderName, CreatedAt: a.CreatedAt,
	})
}

// List handles GET /v1/accounts.
func (h *AccountHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	accounts, err := h.Accounts.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]accountResp, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountResp{
			ID: a.ID, BankName: a.BankName, AccountNumber: a.AccountNumber, HolderName: a.HolderName, CreatedAt: a.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
