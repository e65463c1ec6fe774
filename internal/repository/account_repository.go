package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/supply-share/internal/model"
)

// AccountRepo stores payout accounts.
type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts the account and fills ID and CreatedAt.
func (r *AccountRepo) Create(ctx context.Context, a *model.PayoutAccount) error {
	a.BankName = strings.TrimSpace(a.BankName)
	a.AccountNumber = strings.TrimSpace(a.AccountNumber)
	a.HolderName = strings.TrimSpace(a.HolderName)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payout_accounts (user_id, bank_name, account_number, holder_name) VALUES (?, ?, ?, ?)`,
		a.UserID, a.BankName, a.AccountNumber, a.HolderName)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM payout_accounts WHERE id = ?`, a.ID).Scan(&a.CreatedAt)
}

// GetByID returns the account or ErrAccountNotFound.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (*model.PayoutAccount, error) {
	var a model.PayoutAccount
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, bank_name, account_number, holder_name, created_at FROM payout_accounts WHERE id = ?`,
		id).Scan(&a.ID, &a.UserID, &a.BankName, &a.AccountNumber, &a.HolderName, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByUser returns the user's accounts, oldest first.
func (r *AccountRepo) ListByUser(ctx context.Context, userID uint64) ([]model.PayoutAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, bank_name, account_number, holder_name, created_at
		 FROM payout_accounts WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PayoutAccount{}
	for rows.Next() {
		var a model.PayoutAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.BankName, &a.AccountNumber, &a.HolderName, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
