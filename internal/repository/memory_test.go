package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankcards/card-service/internal/models"
)

func seedCard(t *testing.T, m *Memory, owner uuid.UUID, encrypted, lastFour string) *models.Card {
	t.Helper()
	card := &models.Card{
		ID:              uuid.New(),
		EncryptedNumber: encrypted,
		LastFour:        lastFour,
		OwnerID:         owner,
		Expiry:          models.YearMonth{Year: 2031, Month: time.August},
		Status:          models.CardActive,
		Balance:         decimal.Zero,
	}
	if err := m.CreateCard(context.Background(), card); err != nil {
		t.Fatal(err)
	}
	return card
}

func TestMemoryCardNumberUniqueness(t *testing.T) {
	m := NewMemory()
	owner := uuid.New()
	seedCard(t, m, owner, "ct-1", "1111")

	dup := &models.Card{ID: uuid.New(), EncryptedNumber: "ct-1", LastFour: "1111", OwnerID: owner}
	if err := m.CreateCard(context.Background(), dup); !errors.Is(err, ErrDuplicateCardNumber) {
		t.Fatalf("want ErrDuplicateCardNumber, got %v", err)
	}

	taken, err := m.CardNumberExists(context.Background(), "ct-1")
	if err != nil || !taken {
		t.Fatalf("exists=%v err=%v", taken, err)
	}
	taken, _ = m.CardNumberExists(context.Background(), "ct-2")
	if taken {
		t.Fatal("unknown number reported taken")
	}
}

func TestMemoryReadsAreCopies(t *testing.T) {
	m := NewMemory()
	card := seedCard(t, m, uuid.New(), "ct-1", "1111")

	got, err := m.CardByID(context.Background(), card.ID)
	if err != nil {
		t.Fatal(err)
	}
	got.Balance = decimal.RequireFromString("999")
	got.Status = models.CardDeleted

	again, _ := m.CardByID(context.Background(), card.ID)
	if !again.Balance.IsZero() || again.Status != models.CardActive {
		t.Fatal("mutating a read-out card leaked into the store")
	}
}

func TestMemoryUpdateCardPersistsStatusAndBalanceOnly(t *testing.T) {
	m := NewMemory()
	card := seedCard(t, m, uuid.New(), "ct-1", "1111")

	card.Status = models.CardBlocked
	card.Balance = decimal.RequireFromString("12.34")
	card.LastFour = "9999"
	card.Expiry = models.YearMonth{Year: 2099, Month: time.January}
	if err := m.UpdateCard(context.Background(), card); err != nil {
		t.Fatal(err)
	}

	got, _ := m.CardByID(context.Background(), card.ID)
	if got.Status != models.CardBlocked || !got.Balance.Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("update lost: %+v", got)
	}
	if got.LastFour != "1111" || got.Expiry.Year != 2031 {
		t.Fatal("immutable card fields changed through UpdateCard")
	}

	if err := m.UpdateCard(context.Background(), &models.Card{ID: uuid.New()}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMemoryCardByIDAndOwner(t *testing.T) {
	m := NewMemory()
	owner := uuid.New()
	card := seedCard(t, m, owner, "ct-1", "1111")

	if _, err := m.CardByIDAndOwner(context.Background(), card.ID, owner); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CardByIDAndOwner(context.Background(), card.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign owner: %v", err)
	}
}

func TestMemorySaveTransfer(t *testing.T) {
	m := NewMemory()
	owner := uuid.New()
	from := seedCard(t, m, owner, "ct-1", "1111")
	to := seedCard(t, m, owner, "ct-2", "2222")

	from.Balance = decimal.RequireFromString("60.00")
	to.Balance = decimal.RequireFromString("40.00")
	txn := &models.Transaction{
		ID: uuid.New(), Amount: decimal.RequireFromString("40.00"),
		FromCardID: from.ID, ToCardID: to.ID, CreatedAt: time.Now(),
	}
	if err := m.SaveTransfer(context.Background(), from, to, txn); err != nil {
		t.Fatal(err)
	}

	gotFrom, _ := m.CardByID(context.Background(), from.ID)
	gotTo, _ := m.CardByID(context.Background(), to.ID)
	if !gotFrom.Balance.Equal(decimal.RequireFromString("60.00")) || !gotTo.Balance.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("balances: %s / %s", gotFrom.Balance, gotTo.Balance)
	}

	txns, total, err := m.TransactionsByCard(context.Background(), from.ID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(txns) != 1 || txns[0].ID != txn.ID {
		t.Fatalf("ledger: total=%d txns=%+v", total, txns)
	}
}

func TestMemoryListingsNewestFirstAndPaged(t *testing.T) {
	m := NewMemory()
	owner := uuid.New()
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		c := seedCard(t, m, owner, "ct-"+uuid.NewString(), "1234")
		ids = append(ids, c.ID)
	}

	cards, total, err := m.CardsByOwner(context.Background(), owner, "", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(cards) != 2 {
		t.Fatalf("total=%d len=%d", total, len(cards))
	}
	// Insertion order reversed.
	if cards[0].ID != ids[4] || cards[1].ID != ids[3] {
		t.Fatal("listing not newest first")
	}

	// Past the end.
	cards, _, _ = m.CardsByOwner(context.Background(), owner, "", 9, 2)
	if len(cards) != 0 {
		t.Fatalf("out-of-range page returned %d cards", len(cards))
	}

	// Last-four filter.
	seedCard(t, m, owner, "ct-odd", "9876")
	cards, total, _ = m.CardsByOwner(context.Background(), owner, "9876", 0, 10)
	if total != 1 || cards[0].LastFour != "9876" {
		t.Fatalf("filter: total=%d", total)
	}
}

func TestMemoryExpireActiveCards(t *testing.T) {
	m := NewMemory()
	owner := uuid.New()
	old := seedCard(t, m, owner, "ct-1", "1111")
	expired := &models.Card{
		ID:              uuid.New(),
		EncryptedNumber: "ct-2",
		LastFour:        "2222",
		OwnerID:         owner,
		Expiry:          models.YearMonth{Year: 2020, Month: time.January},
		Status:          models.CardActive,
		Balance:         decimal.Zero,
	}
	if err := m.CreateCard(context.Background(), expired); err != nil {
		t.Fatal(err)
	}

	n, err := m.ExpireActiveCards(context.Background(), models.YearMonthOf(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}
	got, _ := m.CardByID(context.Background(), expired.ID)
	if got.Status != models.CardBlocked {
		t.Fatalf("status=%s", got.Status)
	}
	still, _ := m.CardByID(context.Background(), old.ID)
	if still.Status != models.CardActive {
		t.Fatalf("unexpired card status=%s", still.Status)
	}
}
