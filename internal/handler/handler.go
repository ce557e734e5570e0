package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerbank/ledger-service/internal/middleware"
	"github.com/ledgerbank/ledger-service/internal/models"
	"github.com/ledgerbank/ledger-service/internal/service"
)

const historyLimit = 100

type Handler struct {
	svc      *service.Service
	validate *validator.Validate
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type amountRequest struct {
	Username string          `json:"username" validate:"required"`
	Password string          `json:"password" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	Username string          `json:"username" validate:"required"`
	Password string          `json:"password" validate:"required"`
	To       string          `json:"to" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

func (h *Handler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	if _, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, statusOK, "You successfully signed up")
}

// Login authenticates a user and returns a JWT token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": statusOK, "token": token})
}

// Add handles deposits
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	if err := h.svc.Deposit(r.Context(), req.Username, req.Password, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, statusOK, "Money added successfully")
}

// Transfer handles transfers between accounts
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	if err := h.svc.Transfer(r.Context(), req.Username, req.Password, req.To, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, statusOK, "Money transferred successfully")
}

// Balance returns the account's cash and debt
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	acct, err := h.svc.GetBalance(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Status:   statusOK,
		Username: acct.Username,
		Cash:     acct.Cash,
		Debt:     acct.Debt,
	})
}

type balanceResponse struct {
	Status   string          `json:"status"`
	Username string          `json:"username"`
	Cash     decimal.Decimal `json:"cash"`
	Debt     decimal.Decimal `json:"debt"`
}

// TakeLoan handles loan requests
func (h *Handler) TakeLoan(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	if err := h.svc.TakeLoan(r.Context(), req.Username, req.Password, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, statusOK, "Loan added to your account")
}

// PayLoan handles loan payments
func (h *Handler) PayLoan(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	if err := h.svc.PayLoan(r.Context(), req.Username, req.Password, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, statusOK, "You paid your debt successfully")
}

// Verify checks a username/password pair
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w)
		return
	}
	if err := h.svc.VerifyCredentials(r.Context(), req.Username, req.Password); err != nil {
		writeJSON(w, http.StatusOK, map[string]bool{"validate": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"validate": true})
}

// History returns the authenticated user's transaction journal
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.UsernameFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	txs, err := h.svc.History(r.Context(), username, historyLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": statusOK, "transactions": txs})
}
