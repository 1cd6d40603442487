package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankcards/card-service/internal/middleware"
)

type transferRequest struct {
	FromCardID uuid.UUID       `json:"from_card_id"`
	ToCardID   uuid.UUID       `json:"to_card_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// Transfer moves money between two of the caller's cards.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r.Context())
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.FromCardID == uuid.Nil || req.ToCardID == uuid.Nil {
		h.badRequest(w, "from_card_id and to_card_id are required")
		return
	}

	txn, err := h.transfers.Transfer(r.Context(), userID, req.FromCardID, req.ToCardID, req.Amount)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, SuccessResponse{Message: "transfer completed", Data: txn})
}

// MyTransactions pages the caller's transaction history, newest first.
func (h *Handler) MyTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r.Context())
	page, size, ok := pageParams(r)
	if !ok {
		h.badRequest(w, "invalid pagination parameters")
		return
	}
	txns, err := h.transfers.TransactionsForUser(r.Context(), userID, page, size)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, txns)
}

// CardTransactions pages the history of one card (admin view).
func (h *Handler) CardTransactions(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(r, "cardId")
	if !ok {
		h.badRequest(w, "invalid card id")
		return
	}
	page, size, pok := pageParams(r)
	if !pok {
		h.badRequest(w, "invalid pagination parameters")
		return
	}
	txns, err := h.transfers.TransactionsForCard(r.Context(), cardID, page, size)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, txns)
}
