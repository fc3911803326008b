// Package credits gates generation work on account balance.
package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Hakan2211/cinevido-sub002/internal/domain"
	"github.com/Hakan2211/cinevido-sub002/internal/infra"
	"github.com/Hakan2211/cinevido-sub002/internal/sqlinline"
)

// Ledger reads and debits user credit balances. Debits are conditional
// updates so two concurrent spends can never drive a balance negative.
type Ledger struct {
	sql infra.SQLExecutor
}

func NewLedger(sql infra.SQLExecutor) *Ledger {
	return &Ledger{sql: sql}
}

// Authorize checks that the principal can afford the given cost. Admins are
// never charged and always pass. A failed authorization leaves no trace
// anywhere; nothing has been written yet.
func (l *Ledger) Authorize(ctx context.Context, principal domain.Principal, cost int) error {
	if principal.IsAdmin() {
		return nil
	}
	var (
		role    string
		balance int
	)
	row := l.sql.QueryRow(ctx, sqlinline.QSelectUserCredits, principal.UserID)
	if err := row.Scan(&role, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("credits: read balance: %w", err)
	}
	if domain.UserRole(role) == domain.UserRoleAdmin {
		return nil
	}
	if balance < cost {
		return &domain.InsufficientCreditsError{Required: cost, Available: balance}
	}
	return nil
}

// Debit atomically subtracts the amount and returns the remaining balance.
// The balance may have shrunk between Authorize and Debit, so the guard is
// re-applied here; an insufficient balance surfaces the same typed error.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return l.Balance(ctx, userID)
	}
	var remaining int
	row := l.sql.QueryRow(ctx, sqlinline.QDebitCredits, userID, amount)
	if err := row.Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			balance, balErr := l.Balance(ctx, userID)
			if balErr != nil {
				return 0, balErr
			}
			return 0, &domain.InsufficientCreditsError{Required: amount, Available: balance}
		}
		return 0, fmt.Errorf("credits: debit: %w", err)
	}
	return remaining, nil
}

// Grant adds credits to an account and returns the new balance.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int) (int, error) {
	var (
		id      string
		email   string
		balance int
	)
	row := l.sql.QueryRow(ctx, sqlinline.QGrantCredits, userID, amount)
	if err := row.Scan(&id, &email, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("credits: grant: %w", err)
	}
	return balance, nil
}

// Balance returns the current credit balance for a user.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	var (
		role    string
		balance int
	)
	row := l.sql.QueryRow(ctx, sqlinline.QSelectUserCredits, userID)
	if err := row.Scan(&role, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("credits: read balance: %w", err)
	}
	return balance, nil
}
