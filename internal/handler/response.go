package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ledgerbank/ledger-service/internal/service"
)

// Wire status codes. Domain outcomes ride on HTTP 200; only infrastructure
// failures change the HTTP status.
const (
	statusOK                = "200"
	statusInvalidUsername   = "301"
	statusIncorrectPassword = "302"
	statusRejected          = "304"
	statusUnavailable       = "503"
	statusInternal          = "500"
)

type statusResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

func writeJSON(w http.ResponseWriter, httpStatus int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(body)
}

func writeStatus(w http.ResponseWriter, status, msg string) {
	writeJSON(w, http.StatusOK, statusResponse{Status: status, Msg: msg})
}

func writeBadRequest(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, statusResponse{Status: statusRejected, Msg: "Invalid request body"})
}

// writeError maps domain errors onto the wire contract.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidUsername), errors.Is(err, service.ErrUsernameTaken):
		writeStatus(w, statusInvalidUsername, "Invalid username")
	case errors.Is(err, service.ErrIncorrectPassword):
		writeStatus(w, statusIncorrectPassword, "Incorrect password")
	case errors.Is(err, service.ErrInvalidAmount):
		writeStatus(w, statusRejected, "The money amount must be greater than 0")
	case errors.Is(err, service.ErrInsufficientBalance):
		writeStatus(w, statusRejected, "You are running out of money, please add")
	case errors.Is(err, service.ErrSameAccount):
		writeStatus(w, statusRejected, "Cannot transfer to the same account")
	case errors.Is(err, service.ErrLoanDenied):
		writeStatus(w, statusRejected, "Sorry, bank can not provide a loan of that amount")
	case errors.Is(err, service.ErrOverpayment):
		writeStatus(w, statusRejected, "You are paying extra")
	case errors.Is(err, service.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: statusUnavailable, Msg: "Service temporarily unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: statusInternal, Msg: "Internal error"})
	}
}
