// Package handler exposes the HTTP surface. It owns request parsing and
// response shaping only; every business rule lives in the service layer.
package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/service"
)

type Handler struct {
	auth      *service.AuthService
	cards     *service.CardService
	transfers *service.TransferService
	log       *logrus.Logger
}

func NewHandler(auth *service.AuthService, cards *service.CardService, transfers *service.TransferService, log *logrus.Logger) *Handler {
	return &Handler{auth: auth, cards: cards, transfers: transfers, log: log}
}

// pathID parses a UUID path variable.
func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	return id, err == nil
}

// pageParams reads ?page= and ?size= with the listing defaults. Range rules
// are enforced by the services.
func pageParams(r *http.Request) (int, int, bool) {
	page, size := 0, 10
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		page = n
	}
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		size = n
	}
	return page, size, true
}
