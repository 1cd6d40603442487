package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bankcards/card-service/internal/models"
)

// Memory is an in-memory store used by tests and database-less runs. A single
// mutex guards all maps; reads hand out copies so callers can never mutate
// stored state outside the transfer engine's lock discipline.
type Memory struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]*models.User
	cards     map[uuid.UUID]*models.Card
	cardOrder []uuid.UUID
	numbers   map[string]uuid.UUID
	txns      []models.Transaction
}

// NewMemory initializes an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[uuid.UUID]*models.User),
		cards:   make(map[uuid.UUID]*models.Card),
		numbers: make(map[string]uuid.UUID),
	}
}

// CreateUser inserts a new user.
func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

// UserByID retrieves a user by id.
func (m *Memory) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// UserByUsername retrieves a user by username.
func (m *Memory) UserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.Username == username {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// UsernameExists reports whether a user with the username exists.
func (m *Memory) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

// PhoneExists reports whether a user with the phone number exists.
func (m *Memory) PhoneExists(_ context.Context, phone string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.PhoneNumber == phone {
			return true, nil
		}
	}
	return false, nil
}

// CreateCard inserts a new card, enforcing encrypted-number uniqueness.
func (m *Memory) CreateCard(_ context.Context, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.numbers[card.EncryptedNumber]; taken {
		return ErrDuplicateCardNumber
	}
	card.CreatedAt = time.Now()
	cp := *card
	m.cards[card.ID] = &cp
	m.cardOrder = append(m.cardOrder, card.ID)
	m.numbers[card.EncryptedNumber] = card.ID
	return nil
}

// CardByID retrieves a card by id. Soft-deleted cards stay visible.
func (m *Memory) CardByID(_ context.Context, id uuid.UUID) (*models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	card, ok := m.cards[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *card
	return &cp, nil
}

// CardByIDAndOwner retrieves a card only when it belongs to the owner.
func (m *Memory) CardByIDAndOwner(_ context.Context, id, ownerID uuid.UUID) (*models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	card, ok := m.cards[id]
	if !ok || card.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	cp := *card
	return &cp, nil
}

// UpdateCard persists status and balance.
func (m *Memory) UpdateCard(_ context.Context, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.cards[card.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = card.Status
	stored.Balance = card.Balance
	return nil
}

// CardNumberExists reports whether the encrypted number is already stored.
func (m *Memory) CardNumberExists(_ context.Context, encrypted string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, taken := m.numbers[encrypted]
	return taken, nil
}

// CardsByOwner lists the owner's cards, newest first.
func (m *Memory) CardsByOwner(_ context.Context, ownerID uuid.UUID, lastFour string, page, size int) ([]models.Card, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterCards(func(c *models.Card) bool {
		if c.OwnerID != ownerID {
			return false
		}
		return lastFour == "" || strings.Contains(c.LastFour, lastFour)
	}, page, size)
}

// AllCards lists every card, newest first.
func (m *Memory) AllCards(_ context.Context, page, size int) ([]models.Card, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterCards(func(*models.Card) bool { return true }, page, size)
}

func (m *Memory) filterCards(keep func(*models.Card) bool, page, size int) ([]models.Card, int64, error) {
	var matched []models.Card
	for i := len(m.cardOrder) - 1; i >= 0; i-- {
		card := m.cards[m.cardOrder[i]]
		if keep(card) {
			matched = append(matched, *card)
		}
	}
	return slice(matched, page, size), int64(len(matched)), nil
}

// ExpireActiveCards blocks active cards whose expiry month has passed.
func (m *Memory) ExpireActiveCards(_ context.Context, before models.YearMonth) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, card := range m.cards {
		if card.Status == models.CardActive && card.Expiry.Before(before) {
			card.Status = models.CardBlocked
			n++
		}
	}
	return n, nil
}

// SaveTransfer commits both balance mutations and the transaction record in
// one critical section; no reader can observe the intermediate state.
func (m *Memory) SaveTransfer(_ context.Context, from, to *models.Card, txn *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	storedFrom, okFrom := m.cards[from.ID]
	storedTo, okTo := m.cards[to.ID]
	if !okFrom || !okTo {
		return ErrNotFound
	}
	storedFrom.Balance = from.Balance
	storedTo.Balance = to.Balance
	m.txns = append(m.txns, *txn)
	return nil
}

// TransactionsByOwner lists transactions where the user owns either side,
// newest first.
func (m *Memory) TransactionsByOwner(_ context.Context, ownerID uuid.UUID, page, size int) ([]models.Transaction, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterTxns(func(t *models.Transaction) bool {
		return m.cardOwner(t.FromCardID) == ownerID || m.cardOwner(t.ToCardID) == ownerID
	}, page, size)
}

// TransactionsByCard lists transactions touching one card, newest first.
func (m *Memory) TransactionsByCard(_ context.Context, cardID uuid.UUID, page, size int) ([]models.Transaction, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterTxns(func(t *models.Transaction) bool {
		return t.FromCardID == cardID || t.ToCardID == cardID
	}, page, size)
}

func (m *Memory) filterTxns(keep func(*models.Transaction) bool, page, size int) ([]models.Transaction, int64, error) {
	var matched []models.Transaction
	for i := len(m.txns) - 1; i >= 0; i-- {
		if keep(&m.txns[i]) {
			matched = append(matched, m.txns[i])
		}
	}
	return slice(matched, page, size), int64(len(matched)), nil
}

func (m *Memory) cardOwner(id uuid.UUID) uuid.UUID {
	if card, ok := m.cards[id]; ok {
		return card.OwnerID
	}
	return uuid.Nil
}

func slice[T any](items []T, page, size int) []T {
	start := page * size
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
