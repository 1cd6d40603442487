package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankcards/card-service/internal/apperr"
	"github.com/bankcards/card-service/internal/locking"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balance(t *testing.T, e *env, id uuid.UUID) decimal.Decimal {
	t.Helper()
	card, err := e.store.CardByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return card.Balance
}

func TestTransfer(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	from := e.card(t, owner.ID, "100.00")
	to := e.card(t, owner.ID, "25.50")

	txn, err := e.transfers.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("40.25"))
	if err != nil {
		t.Fatal(err)
	}
	if txn.FromCardID != from.ID || txn.ToCardID != to.ID {
		t.Fatalf("transaction endpoints: %+v", txn)
	}
	if !txn.Amount.Equal(dec("40.25")) {
		t.Fatalf("amount=%s", txn.Amount)
	}
	if txn.CreatedAt.IsZero() {
		t.Fatal("missing commit timestamp")
	}

	if got := balance(t, e, from.ID); !got.Equal(dec("59.75")) {
		t.Fatalf("source balance=%s want 59.75", got)
	}
	if got := balance(t, e, to.ID); !got.Equal(dec("65.75")) {
		t.Fatalf("destination balance=%s want 65.75", got)
	}
}

func TestTransferExactDrain(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	from := e.card(t, owner.ID, "1000.00")
	to := e.card(t, owner.ID, "0")

	if _, err := e.transfers.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("1000.00")); err != nil {
		t.Fatal(err)
	}
	if got := balance(t, e, from.ID); !got.Equal(dec("0.00")) {
		t.Fatalf("source balance=%s want 0.00", got)
	}

	// One more cent must fail; the empty card cannot go negative.
	_, err := e.transfers.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("0.01"))
	wantCode(t, err, apperr.CodeInsufficientFunds)
	if got := balance(t, e, from.ID); !got.Equal(dec("0.00")) {
		t.Fatalf("failed transfer moved money: %s", got)
	}
	if got := balance(t, e, to.ID); !got.Equal(dec("1000.00")) {
		t.Fatalf("failed transfer moved money: %s", got)
	}
}

// A thousand one-cent transfers must land exactly; decimal arithmetic admits
// no rounding drift.
func TestTransferNoDrift(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	from := e.card(t, owner.ID, "10.00")
	to := e.card(t, owner.ID, "0")

	for i := 0; i < 1000; i++ {
		if _, err := e.transfers.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("0.01")); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}
	if got := balance(t, e, from.ID); !got.Equal(dec("0.00")) {
		t.Fatalf("source balance=%s want exactly 0.00", got)
	}
	if got := balance(t, e, to.ID); !got.Equal(dec("10.00")) {
		t.Fatalf("destination balance=%s want exactly 10.00", got)
	}
}

func TestTransferSameCard(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	card := e.card(t, owner.ID, "100.00")

	_, err := e.transfers.Transfer(context.Background(), owner.ID, card.ID, card.ID, dec("1.00"))
	wantCode(t, err, apperr.CodeSameCardTransfer)
}

func TestTransferCardNotFound(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	card := e.card(t, owner.ID, "100.00")

	_, err := e.transfers.Transfer(context.Background(), owner.ID, card.ID, uuid.New(), dec("1.00"))
	wantCode(t, err, apperr.CodeCardNotFound)
	_, err = e.transfers.Transfer(context.Background(), owner.ID, uuid.New(), card.ID, dec("1.00"))
	wantCode(t, err, apperr.CodeCardNotFound)
}

func TestTransferNotOwner(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	stranger := e.user(t)
	from := e.card(t, owner.ID, "100.00")
	to := e.card(t, stranger.ID, "0")

	_, err := e.transfers.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("1.00"))
	wantCode(t, err, apperr.CodeNotOwner)
	_, err = e.transfers.Transfer(context.Background(), stranger.ID, from.ID, to.ID, dec("1.00"))
	wantCode(t, err, apperr.CodeNotOwner)
}

func TestTransferBlockedCard(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	from := e.card(t, owner.ID, "100.00")
	to := e.card(t, owner.ID, "0")

	if _, err := e.cards.BlockCard(context.Background(), from.ID); err != nil {
		t.Fatal(err)
	}

	_, err := e.transfers.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("1.00"))
	wantCode(t, err, apperr.CodeCardNotActive)

	// Neither side moved.
	if got := balance(t, e, from.ID); !got.Equal(dec("100.00")) {
		t.Fatalf("source balance=%s", got)
	}
	if got := balance(t, e, to.ID); !got.IsZero() {
		t.Fatalf("destination balance=%s", got)
	}
}

// A soft-deleted participant is consistently reported as not active, never
// as missing.
func TestTransferDeletedCard(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	from := e.card(t, owner.ID, "500.00")
	to := e.card(t, owner.ID, "0")

	if err := e.cards.DeleteCard(context.Background(), from.ID); err != nil {
		t.Fatal(err)
	}

	_, err := e.transfers.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("1.00"))
	wantCode(t, err, apperr.CodeCardNotActive)
	if got := balance(t, e, from.ID); !got.Equal(dec("500.00")) {
		t.Fatalf("deleted card balance changed: %s", got)
	}
}

func TestTransferInvalidAmounts(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	from := e.card(t, owner.ID, "100.00")
	to := e.card(t, owner.ID, "0")

	for _, amount := range []string{"0", "-1", "0.001"} {
		_, err := e.transfers.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec(amount))
		wantCode(t, err, apperr.CodeInvalidAmount)
	}
}

// Two concurrent transfers in opposite directions between the same pair must
// both commit without deadlock, and the outcome must equal the sequential
// application of both.
func TestTransferOppositeDirections(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	x := e.card(t, owner.ID, "100.00")
	y := e.card(t, owner.ID, "100.00")

	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = e.transfers.Transfer(context.Background(), owner.ID, x.ID, y.ID, dec("10.00"))
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = e.transfers.Transfer(context.Background(), owner.ID, y.ID, x.ID, dec("10.00"))
		}()
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				t.Fatalf("round %d: %v", round, err)
			}
		}
	}

	// Amounts are equal in both directions, so balances end where they began.
	if got := balance(t, e, x.ID); !got.Equal(dec("100.00")) {
		t.Fatalf("x balance=%s want 100.00", got)
	}
	if got := balance(t, e, y.ID); !got.Equal(dec("100.00")) {
		t.Fatalf("y balance=%s want 100.00", got)
	}
}

// Arbitrary interleavings of transfers and top-ups may fail individual
// operations but must never produce a negative balance or lose money.
func TestTransferConcurrentSafety(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	cards := make([]uuid.UUID, 4)
	for i := range cards {
		cards[i] = e.card(t, owner.ID, "50.00").ID
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				from := cards[(g+i)%len(cards)]
				to := cards[(g+i+1)%len(cards)]
				_, err := e.transfers.Transfer(context.Background(), owner.ID, from, to, dec("3.00"))
				if err != nil && !apperr.IsCode(err, apperr.CodeInsufficientFunds) {
					t.Errorf("unexpected transfer failure: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	total := decimal.Zero
	for _, id := range cards {
		b := balance(t, e, id)
		if b.Sign() < 0 {
			t.Fatalf("negative balance on %s: %s", id, b)
		}
		total = total.Add(b)
	}
	if !total.Equal(dec("200.00")) {
		t.Fatalf("money not conserved: total=%s want 200.00", total)
	}
}

func TestTransferBusyWhenLocked(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	from := e.card(t, owner.ID, "100.00")
	to := e.card(t, owner.ID, "0")

	// A transfer service that gives up on lock contention almost immediately.
	locks := locking.NewTable(50 * time.Millisecond)
	transfers := NewTransferService(e.store, e.store, e.store, locks, nil, logrusDiscard())

	release, err := locks.Acquire(context.Background(), from.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	_, err = transfers.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("1.00"))
	wantCode(t, err, apperr.CodeTransferBusy)
}

func TestTransactionListings(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t)
	other := e.user(t)
	a := e.card(t, owner.ID, "100.00")
	b := e.card(t, owner.ID, "0")
	c := e.card(t, other.ID, "100.00")
	d := e.card(t, other.ID, "0")

	for i := 0; i < 3; i++ {
		if _, err := e.transfers.Transfer(context.Background(), owner.ID, a.ID, b.ID, dec("1.00")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := e.transfers.Transfer(context.Background(), other.ID, c.ID, d.ID, dec("2.00")); err != nil {
		t.Fatal(err)
	}

	mine, err := e.transfers.TransactionsForUser(context.Background(), owner.ID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if mine.TotalElements != 3 {
		t.Fatalf("total=%d want 3", mine.TotalElements)
	}
	for _, txn := range mine.Content {
		if txn.FromCardID != a.ID && txn.ToCardID != b.ID {
			t.Fatalf("foreign transaction leaked: %+v", txn)
		}
	}
	// Newest first.
	for i := 1; i < len(mine.Content); i++ {
		if mine.Content[i].CreatedAt.After(mine.Content[i-1].CreatedAt) {
			t.Fatal("transactions not ordered newest first")
		}
	}

	byCard, err := e.transfers.TransactionsForCard(context.Background(), c.ID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if byCard.TotalElements != 1 {
		t.Fatalf("total=%d want 1", byCard.TotalElements)
	}

	_, err = e.transfers.TransactionsForUser(context.Background(), owner.ID, -1, 10)
	wantCode(t, err, apperr.CodeInvalidPagination)
	_, err = e.transfers.TransactionsForCard(context.Background(), c.ID, 0, 1000)
	wantCode(t, err, apperr.CodeInvalidPagination)
}
