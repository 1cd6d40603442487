package handler

import (
	"encoding/json"
	"net/http"
)

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
	AdminCode   string `json:"admin_code,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRegister(w, r)
	if !ok {
		return
	}
	user, err := h.auth.Register(r.Context(), req.Username, req.Email, req.PhoneNumber, req.Password)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, SuccessResponse{Message: "user registered", Data: user})
}

// RegisterAdmin handles administrator registration
func (h *Handler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRegister(w, r)
	if !ok {
		return
	}
	user, err := h.auth.RegisterAdmin(r.Context(), req.Username, req.Email, req.PhoneNumber, req.Password, req.AdminCode)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, SuccessResponse{Message: "admin registered", Data: user})
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, authResponse{Token: token})
}

func (h *Handler) decodeRegister(w http.ResponseWriter, r *http.Request) (registerRequest, bool) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return req, false
	}
	if req.Username == "" || req.Password == "" || req.PhoneNumber == "" {
		h.badRequest(w, "username, phone_number and password are required")
		return req, false
	}
	return req, true
}
