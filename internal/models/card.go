package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardStatus is the lifecycle state of a card. DELETED is terminal.
type CardStatus string

const (
	CardActive  CardStatus = "ACTIVE"
	CardBlocked CardStatus = "BLOCKED"
	CardDeleted CardStatus = "DELETED"
)

// Card represents a bank card. The full number is stored encrypted only;
// the clear last four digits are kept for masking and search.
type Card struct {
	ID              uuid.UUID       `json:"id"`
	EncryptedNumber string          `json:"-"`
	LastFour        string          `json:"last_four"`
	OwnerID         uuid.UUID       `json:"owner_id"`
	Expiry          YearMonth       `json:"expiry"`
	Status          CardStatus      `json:"status"`
	Balance         decimal.Decimal `json:"balance"`
	CreatedAt       time.Time       `json:"created_at"`
}

// MaskedNumber renders the card number for display without decryption.
func (c *Card) MaskedNumber() string {
	return "**** **** **** " + c.LastFour
}
