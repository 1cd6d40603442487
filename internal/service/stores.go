// Package service holds the business logic: the card registry, the transfer
// engine with its ledger queries, and the auth service the rest of the
// system consumes as an identity oracle.
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankcards/card-service/internal/apperr"
	"github.com/bankcards/card-service/internal/models"
)

// UserStore is the persistence contract for identities.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
}

// CardStore is the persistence contract for cards.
type CardStore interface {
	CreateCard(ctx context.Context, card *models.Card) error
	CardByID(ctx context.Context, id uuid.UUID) (*models.Card, error)
	CardByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Card, error)
	UpdateCard(ctx context.Context, card *models.Card) error
	CardNumberExists(ctx context.Context, encrypted string) (bool, error)
	CardsByOwner(ctx context.Context, ownerID uuid.UUID, lastFour string, page, size int) ([]models.Card, int64, error)
	AllCards(ctx context.Context, page, size int) ([]models.Card, int64, error)
	ExpireActiveCards(ctx context.Context, before models.YearMonth) (int64, error)
}

// TransferStore is the persistence contract for the transfer commit and the
// append-only transaction ledger.
type TransferStore interface {
	// SaveTransfer persists both balances and the transaction record as a
	// single atomic effect.
	SaveTransfer(ctx context.Context, from, to *models.Card, txn *models.Transaction) error
	TransactionsByOwner(ctx context.Context, ownerID uuid.UUID, page, size int) ([]models.Transaction, int64, error)
	TransactionsByCard(ctx context.Context, cardID uuid.UUID, page, size int) ([]models.Transaction, int64, error)
}

// Notifier delivers best-effort owner notifications. Implementations must
// not block the caller; a nil Notifier disables notifications.
type Notifier interface {
	TransferReceipt(to, username string, amount decimal.Decimal, fromMasked, toMasked string)
	CardBlocked(to, username, masked, reason string)
}

// validatePagination enforces page >= 0 and 1 <= size <= 100.
func validatePagination(page, size int) error {
	if page < 0 {
		return apperr.BadRequest(apperr.CodeInvalidPagination, "page number must not be negative")
	}
	if size < 1 || size > 100 {
		return apperr.BadRequest(apperr.CodeInvalidPagination, "page size must be between 1 and 100")
	}
	return nil
}

// validateAmount enforces a positive amount with at most two fractional
// digits; every amount in the system is an exact decimal.
func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return apperr.BadRequest(apperr.CodeInvalidAmount, "amount must be positive, got %s", amount)
	}
	if !amount.Equal(amount.Truncate(2)) {
		return apperr.BadRequest(apperr.CodeInvalidAmount, "amount must have at most 2 decimal places, got %s", amount)
	}
	return nil
}
