package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/apperr"
	"github.com/bankcards/card-service/internal/locking"
	"github.com/bankcards/card-service/internal/models"
	"github.com/bankcards/card-service/internal/repository"
)

// TransferService executes atomic transfers between two cards of the same
// owner and answers ledger queries.
type TransferService struct {
	transfers TransferStore
	cards     CardStore
	users     UserStore
	locks     *locking.Table
	notifier  Notifier
	log       *logrus.Logger
}

// NewTransferService wires the engine. notifier may be nil.
func NewTransferService(transfers TransferStore, cards CardStore, users UserStore, locks *locking.Table, notifier Notifier, log *logrus.Logger) *TransferService {
	return &TransferService{transfers: transfers, cards: cards, users: users, locks: locks, notifier: notifier, log: log}
}

// Transfer moves amount from one of the requester's cards to another. The
// validation pipeline runs entirely under both card locks; on any failure no
// balance changes, and on success both mutations plus the ledger record
// commit as one atomic effect.
func (s *TransferService) Transfer(ctx context.Context, requesterID, fromCardID, toCardID uuid.UUID, amount decimal.Decimal) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if fromCardID == toCardID {
		return nil, apperr.BadRequest(apperr.CodeSameCardTransfer,
			"cannot transfer to the same card: %s", fromCardID)
	}

	// Locks are acquired in canonical order inside the table, never in
	// request order, so opposite-direction transfers cannot deadlock.
	release, err := s.locks.Acquire(ctx, fromCardID, toCardID)
	if err != nil {
		return nil, lockErr(err)
	}
	defer release()

	fromCard, err := s.lockedCard(ctx, fromCardID, "source")
	if err != nil {
		return nil, err
	}
	toCard, err := s.lockedCard(ctx, toCardID, "destination")
	if err != nil {
		return nil, err
	}

	if fromCard.OwnerID != requesterID || toCard.OwnerID != requesterID {
		return nil, apperr.New(http.StatusForbidden, apperr.CodeNotOwner, "both cards must belong to you")
	}

	if err := activeCheck(fromCard, "source"); err != nil {
		return nil, err
	}
	if err := activeCheck(toCard, "destination"); err != nil {
		return nil, err
	}

	if fromCard.Balance.LessThan(amount) {
		return nil, apperr.Conflict(apperr.CodeInsufficientFunds,
			"insufficient funds: available %s, required %s", fromCard.Balance, amount)
	}

	fromCard.Balance = fromCard.Balance.Sub(amount)
	toCard.Balance = toCard.Balance.Add(amount)

	txn := &models.Transaction{
		ID:         uuid.New(),
		Amount:     amount,
		FromCardID: fromCard.ID,
		ToCardID:   toCard.ID,
		CreatedAt:  time.Now(),
	}

	if err := s.transfers.SaveTransfer(ctx, fromCard, toCard, txn); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": txn.ID,
		"from_card_id":   fromCard.ID,
		"to_card_id":     toCard.ID,
		"amount":         amount,
	}).Info("Transfer committed")

	if s.notifier != nil {
		if owner, err := s.users.UserByID(ctx, requesterID); err == nil {
			s.notifier.TransferReceipt(owner.Email, owner.Username, amount,
				fromCard.MaskedNumber(), toCard.MaskedNumber())
		}
	}
	return txn, nil
}

// TransactionsForUser pages the transactions where the user owns either
// card, newest first.
func (s *TransferService) TransactionsForUser(ctx context.Context, userID uuid.UUID, page, size int) (models.Page[models.Transaction], error) {
	if err := validatePagination(page, size); err != nil {
		return models.Page[models.Transaction]{}, err
	}
	txns, total, err := s.transfers.TransactionsByOwner(ctx, userID, page, size)
	if err != nil {
		return models.Page[models.Transaction]{}, err
	}
	return models.NewPage(txns, page, size, total), nil
}

// TransactionsForCard pages the transactions touching one card, newest first.
func (s *TransferService) TransactionsForCard(ctx context.Context, cardID uuid.UUID, page, size int) (models.Page[models.Transaction], error) {
	if err := validatePagination(page, size); err != nil {
		return models.Page[models.Transaction]{}, err
	}
	txns, total, err := s.transfers.TransactionsByCard(ctx, cardID, page, size)
	if err != nil {
		return models.Page[models.Transaction]{}, err
	}
	return models.NewPage(txns, page, size, total), nil
}

// lockedCard loads one participant. Soft-deleted cards are found and then
// refused by the status check, never reported as missing.
func (s *TransferService) lockedCard(ctx context.Context, cardID uuid.UUID, side string) (*models.Card, error) {
	card, err := s.cards.CardByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeCardNotFound, "%s card not found: %s", side, cardID)
		}
		return nil, err
	}
	return card, nil
}

func activeCheck(card *models.Card, side string) error {
	if card.Status != models.CardActive {
		return apperr.Conflict(apperr.CodeCardNotActive,
			"%s card is not active: %s", side, card.Status)
	}
	return nil
}
