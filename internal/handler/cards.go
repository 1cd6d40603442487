package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankcards/card-service/internal/middleware"
	"github.com/bankcards/card-service/internal/models"
)

type cardResponse struct {
	ID         uuid.UUID         `json:"id"`
	CardNumber string            `json:"card_number"`
	OwnerID    uuid.UUID         `json:"owner_id"`
	Expiry     models.YearMonth  `json:"expiry"`
	Status     models.CardStatus `json:"status"`
	Balance    decimal.Decimal   `json:"balance"`
	CreatedAt  time.Time         `json:"created_at"`
}

func toCardResponse(c *models.Card) cardResponse {
	return cardResponse{
		ID:         c.ID,
		CardNumber: c.MaskedNumber(),
		OwnerID:    c.OwnerID,
		Expiry:     c.Expiry,
		Status:     c.Status,
		Balance:    c.Balance,
		CreatedAt:  c.CreatedAt,
	}
}

func toCardPage(p models.Page[models.Card]) models.Page[cardResponse] {
	out := make([]cardResponse, 0, len(p.Content))
	for i := range p.Content {
		out = append(out, toCardResponse(&p.Content[i]))
	}
	return models.Page[cardResponse]{
		Content:       out,
		PageNumber:    p.PageNumber,
		PageSize:      p.PageSize,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		First:         p.First,
		Last:          p.Last,
		Empty:         p.Empty,
	}
}

type createCardRequest struct {
	OwnerID uuid.UUID `json:"owner_id"`
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type blockRequest struct {
	Reason string `json:"reason"`
}

// CreateCard handles admin card issuance.
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OwnerID == uuid.Nil {
		h.badRequest(w, "owner_id is required")
		return
	}
	card, err := h.cards.CreateCard(r.Context(), req.OwnerID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, SuccessResponse{Message: "card created", Data: toCardResponse(card)})
}

// BlockCard handles admin card blocking.
func (h *Handler) BlockCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(r, "cardId")
	if !ok {
		h.badRequest(w, "invalid card id")
		return
	}
	card, err := h.cards.BlockCard(r.Context(), cardID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SuccessResponse{Message: "card blocked", Data: toCardResponse(card)})
}

// ActivateCard handles admin card activation.
func (h *Handler) ActivateCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(r, "cardId")
	if !ok {
		h.badRequest(w, "invalid card id")
		return
	}
	card, err := h.cards.ActivateCard(r.Context(), cardID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SuccessResponse{Message: "card activated", Data: toCardResponse(card)})
}

// DeleteCard handles admin soft deletion.
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(r, "cardId")
	if !ok {
		h.badRequest(w, "invalid card id")
		return
	}
	if err := h.cards.DeleteCard(r.Context(), cardID); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SuccessResponse{Message: "card deleted"})
}

// TopUpCard handles the administrative top-up path.
func (h *Handler) TopUpCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(r, "cardId")
	if !ok {
		h.badRequest(w, "invalid card id")
		return
	}
	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if err := h.cards.TopUp(r.Context(), cardID, req.Amount); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SuccessResponse{Message: "balance topped up"})
}

// AllCards handles the admin listing of every card.
func (h *Handler) AllCards(w http.ResponseWriter, r *http.Request) {
	page, size, ok := pageParams(r)
	if !ok {
		h.badRequest(w, "invalid pagination parameters")
		return
	}
	cards, err := h.cards.AllCards(r.Context(), page, size)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCardPage(cards))
}

// MyCards lists the caller's cards.
func (h *Handler) MyCards(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r.Context())
	page, size, ok := pageParams(r)
	if !ok {
		h.badRequest(w, "invalid pagination parameters")
		return
	}
	cards, err := h.cards.CardsForOwner(r.Context(), userID, page, size)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCardPage(cards))
}

// SearchMyCards narrows the caller's cards by last-four digits.
func (h *Handler) SearchMyCards(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r.Context())
	page, size, ok := pageParams(r)
	if !ok {
		h.badRequest(w, "invalid pagination parameters")
		return
	}
	cards, err := h.cards.SearchOwnerCards(r.Context(), userID, r.URL.Query().Get("last_four"), page, size)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCardPage(cards))
}

// CardBalance returns the masked number and balance of the caller's card.
func (h *Handler) CardBalance(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r.Context())
	cardID, ok := pathID(r, "cardId")
	if !ok {
		h.badRequest(w, "invalid card id")
		return
	}
	card, err := h.cards.CardBalance(r.Context(), userID, cardID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"card_id":            card.ID,
		"masked_card_number": card.MaskedNumber(),
		"balance":            card.Balance,
	})
}

// BlockMyCard blocks the caller's own card.
func (h *Handler) BlockMyCard(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFrom(r.Context())
	cardID, ok := pathID(r, "cardId")
	if !ok {
		h.badRequest(w, "invalid card id")
		return
	}
	var req blockRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	card, err := h.cards.BlockOwnCard(r.Context(), userID, cardID, req.Reason)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SuccessResponse{Message: "card blocked", Data: toCardResponse(card)})
}
