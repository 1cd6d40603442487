package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/apperr"
	"github.com/bankcards/card-service/internal/cardnum"
	"github.com/bankcards/card-service/internal/locking"
	"github.com/bankcards/card-service/internal/models"
	"github.com/bankcards/card-service/internal/repository"
	"github.com/bankcards/card-service/internal/vault"
)

// maxNumberAttempts bounds the uniqueness-retry loop during card creation.
// With nine random digits a collision is already rare; hitting the cap means
// the numbering space under the BIN is effectively exhausted.
const maxNumberAttempts = 10

// cardValidityYears is the issuing horizon for new cards.
const cardValidityYears = 5

// CardService is the card registry: it owns the card lifecycle and every
// balance mutation outside the transfer engine.
type CardService struct {
	cards    CardStore
	users    UserStore
	gen      *cardnum.Generator
	vault    *vault.Vault
	locks    *locking.Table
	notifier Notifier
	log      *logrus.Logger
}

// NewCardService wires the registry. notifier may be nil.
func NewCardService(cards CardStore, users UserStore, gen *cardnum.Generator, v *vault.Vault, locks *locking.Table, notifier Notifier, log *logrus.Logger) *CardService {
	return &CardService{cards: cards, users: users, gen: gen, vault: v, locks: locks, notifier: notifier, log: log}
}

// CreateCard issues a new active card with a zero balance for the owner.
func (s *CardService) CreateCard(ctx context.Context, ownerID uuid.UUID) (*models.Card, error) {
	if _, err := s.users.UserByID(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeOwnerNotFound, "owner not found: %s", ownerID)
		}
		return nil, err
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := s.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate card number: %w", err)
		}
		encrypted, err := s.vault.Encrypt(number)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encrypt card number: %w", apperr.CodeCryptoFailure, err)
		}

		taken, err := s.cards.CardNumberExists(ctx, encrypted)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		card := &models.Card{
			ID:              uuid.New(),
			EncryptedNumber: encrypted,
			LastFour:        number[len(number)-4:],
			OwnerID:         ownerID,
			Expiry:          models.YearMonthOf(time.Now()).AddYears(cardValidityYears),
			Status:          models.CardActive,
			Balance:         decimal.Zero,
		}

		err = s.cards.CreateCard(ctx, card)
		if errors.Is(err, repository.ErrDuplicateCardNumber) {
			// Lost a race with a concurrent creation of the same number.
			continue
		}
		if err != nil {
			return nil, err
		}

		s.log.WithFields(logrus.Fields{"card_id": card.ID, "owner_id": ownerID}).
			Info("Card created")
		return card, nil
	}

	return nil, apperr.Conflict(apperr.CodeNumberSpaceExhausted,
		"could not generate a unique card number after %d attempts", maxNumberAttempts)
}

// BlockCard blocks a card unless it is already blocked or deleted.
func (s *CardService) BlockCard(ctx context.Context, cardID uuid.UUID) (*models.Card, error) {
	return s.changeStatus(ctx, cardID, models.CardBlocked)
}

// ActivateCard activates a card unless it is already active or deleted.
func (s *CardService) ActivateCard(ctx context.Context, cardID uuid.UUID) (*models.Card, error) {
	return s.changeStatus(ctx, cardID, models.CardActive)
}

func (s *CardService) changeStatus(ctx context.Context, cardID uuid.UUID, target models.CardStatus) (*models.Card, error) {
	// UpdateCard writes back the balance it read, so status changes share
	// the per-card lock with transfers and top-ups; a write based on a stale
	// read would erase a concurrently committed balance.
	release, err := s.locks.Acquire(ctx, cardID)
	if err != nil {
		return nil, lockErr(err)
	}
	defer release()

	card, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.Status == models.CardDeleted {
		return nil, apperr.Conflict(apperr.CodeInvalidTransition, "card %s is deleted", cardID)
	}
	if card.Status == target {
		return nil, apperr.Conflict(apperr.CodeInvalidTransition, "card %s is already %s", cardID, target)
	}

	card.Status = target
	if err := s.cards.UpdateCard(ctx, card); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"card_id": cardID, "status": target}).Info("Card status changed")
	return card, nil
}

// DeleteCard soft-deletes a card unconditionally. The balance is left as-is
// so historical transactions stay consistent with the recorded state at
// deletion time; the DELETED status alone fences all future mutation.
func (s *CardService) DeleteCard(ctx context.Context, cardID uuid.UUID) error {
	release, err := s.locks.Acquire(ctx, cardID)
	if err != nil {
		return lockErr(err)
	}
	defer release()

	card, err := s.loadCard(ctx, cardID)
	if err != nil {
		return err
	}
	card.Status = models.CardDeleted
	if err := s.cards.UpdateCard(ctx, card); err != nil {
		return err
	}
	s.log.WithField("card_id", cardID).Info("Card deleted")
	return nil
}

// TopUp adds amount to the card's balance. It shares the per-card lock with
// the transfer engine so no interleaving can lose an update. Blocked cards
// still accept credits; only DELETED fences the balance.
func (s *CardService) TopUp(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	release, err := s.locks.Acquire(ctx, cardID)
	if err != nil {
		return lockErr(err)
	}
	defer release()

	card, err := s.loadCard(ctx, cardID)
	if err != nil {
		return err
	}
	if card.Status == models.CardDeleted {
		return apperr.Conflict(apperr.CodeCardNotActive, "card %s is deleted", cardID)
	}

	card.Balance = card.Balance.Add(amount)
	if err := s.cards.UpdateCard(ctx, card); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"card_id": cardID, "amount": amount}).Info("Card topped up")
	return nil
}

// BlockOwnCard blocks a card on the owner's own request. Absence and foreign
// ownership are indistinguishable to the caller.
func (s *CardService) BlockOwnCard(ctx context.Context, ownerID, cardID uuid.UUID, reason string) (*models.Card, error) {
	release, err := s.locks.Acquire(ctx, cardID)
	if err != nil {
		return nil, lockErr(err)
	}
	defer release()

	card, err := s.cards.CardByIDAndOwner(ctx, cardID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeCardNotFound,
				"card not found or does not belong to you: %s", cardID)
		}
		return nil, err
	}
	if card.Status == models.CardDeleted {
		return nil, apperr.Conflict(apperr.CodeInvalidTransition, "card %s is deleted", cardID)
	}
	if card.Status == models.CardBlocked {
		return nil, apperr.Conflict(apperr.CodeInvalidTransition, "card %s is already %s", cardID, models.CardBlocked)
	}

	card.Status = models.CardBlocked
	if err := s.cards.UpdateCard(ctx, card); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"card_id": cardID, "owner_id": ownerID, "reason": reason}).
		Info("Card blocked by owner")

	if s.notifier != nil {
		if owner, err := s.users.UserByID(ctx, ownerID); err == nil {
			s.notifier.CardBlocked(owner.Email, owner.Username, card.MaskedNumber(), reason)
		}
	}
	return card, nil
}

// CardsForOwner lists the owner's cards, newest first.
func (s *CardService) CardsForOwner(ctx context.Context, ownerID uuid.UUID, page, size int) (models.Page[models.Card], error) {
	return s.ownerCards(ctx, ownerID, "", page, size)
}

// SearchOwnerCards narrows the owner's cards by last-four digits.
func (s *CardService) SearchOwnerCards(ctx context.Context, ownerID uuid.UUID, lastFour string, page, size int) (models.Page[models.Card], error) {
	if _, err := s.users.UserByID(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Page[models.Card]{}, apperr.NotFound(apperr.CodeOwnerNotFound, "owner not found: %s", ownerID)
		}
		return models.Page[models.Card]{}, err
	}
	return s.ownerCards(ctx, ownerID, lastFour, page, size)
}

func (s *CardService) ownerCards(ctx context.Context, ownerID uuid.UUID, lastFour string, page, size int) (models.Page[models.Card], error) {
	if err := validatePagination(page, size); err != nil {
		return models.Page[models.Card]{}, err
	}
	cards, total, err := s.cards.CardsByOwner(ctx, ownerID, lastFour, page, size)
	if err != nil {
		return models.Page[models.Card]{}, err
	}
	return models.NewPage(cards, page, size, total), nil
}

// AllCards lists every card in the system, newest first.
func (s *CardService) AllCards(ctx context.Context, page, size int) (models.Page[models.Card], error) {
	if err := validatePagination(page, size); err != nil {
		return models.Page[models.Card]{}, err
	}
	cards, total, err := s.cards.AllCards(ctx, page, size)
	if err != nil {
		return models.Page[models.Card]{}, err
	}
	return models.NewPage(cards, page, size, total), nil
}

// CardBalance returns the masked number and balance of the owner's card.
func (s *CardService) CardBalance(ctx context.Context, ownerID, cardID uuid.UUID) (*models.Card, error) {
	card, err := s.cards.CardByIDAndOwner(ctx, cardID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeCardNotFound,
				"card not found or does not belong to you: %s", cardID)
		}
		return nil, err
	}
	return card, nil
}

// BlockExpired blocks every active card whose expiry month has passed.
// Called from the scheduled sweep.
func (s *CardService) BlockExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.cards.ExpireActiveCards(ctx, models.YearMonthOf(now))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithField("count", n).Info("Expired cards blocked")
	}
	return n, nil
}

func (s *CardService) loadCard(ctx context.Context, cardID uuid.UUID) (*models.Card, error) {
	card, err := s.cards.CardByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeCardNotFound, "card not found: %s", cardID)
		}
		return nil, err
	}
	return card, nil
}

// lockErr maps lock-table failures to the caller-facing busy condition.
func lockErr(err error) error {
	if errors.Is(err, locking.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.New(http.StatusServiceUnavailable, apperr.CodeTransferBusy,
			"cards are busy, retry the operation")
	}
	return err
}
