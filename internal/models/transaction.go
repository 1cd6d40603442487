package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is an immutable record of a committed transfer. The ledger is
// append-only: no update or delete path exists anywhere in the system.
type Transaction struct {
	ID         uuid.UUID       `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	FromCardID uuid.UUID       `json:"from_card_id"`
	ToCardID   uuid.UUID       `json:"to_card_id"`
	CreatedAt  time.Time       `json:"created_at"`
}
