// Package locking provides a per-card lock table for the transfer engine.
//
// Locks for multiple cards are always taken in ascending id order, regardless
// of which card is the source and which the destination. Two concurrent
// transfers moving money in opposite directions between the same pair of
// cards therefore contend on the same first lock instead of deadlocking.
package locking

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTimeout is returned when the full lock set cannot be acquired within
// the table's wait bound.
var ErrTimeout = errors.New("lock acquisition timed out")

// Table holds one lock per card. Entries live for the lifetime of the card,
// so the table grows with the card set.
type Table struct {
	wait  time.Duration
	mu    sync.Mutex
	locks map[uuid.UUID]chan struct{}
}

// NewTable builds a table with the given bounded wait for a full lock set.
func NewTable(wait time.Duration) *Table {
	return &Table{wait: wait, locks: make(map[uuid.UUID]chan struct{})}
}

// Acquire takes exclusive locks on all ids in canonical (ascending byte)
// order and returns a release function. On timeout or context cancellation
// every lock already taken is released and ErrTimeout or the context error
// is returned. Duplicate ids are collapsed; callers reject same-card
// transfers before locking.
func (t *Table) Acquire(ctx context.Context, ids ...uuid.UUID) (func(), error) {
	ordered := canonical(ids)

	timer := time.NewTimer(t.wait)
	defer timer.Stop()

	held := make([]chan struct{}, 0, len(ordered))
	release := func() {
		// Release in reverse acquisition order.
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range ordered {
		ch := t.lockFor(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-timer.C:
			release()
			return nil, ErrTimeout
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// lockFor returns the lock channel for id, creating it on first use.
// A buffered channel of size one acts as a mutex that can be waited on
// together with a timeout.
func (t *Table) lockFor(id uuid.UUID) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		t.locks[id] = ch
	}
	return ch
}

// canonical sorts ids ascending and drops duplicates.
func canonical(ids []uuid.UUID) []uuid.UUID {
	ordered := make([]uuid.UUID, len(ids))
	copy(ordered, ids)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})
	out := make([]uuid.UUID, 0, len(ordered))
	for _, id := range ordered {
		if len(out) == 0 || id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
