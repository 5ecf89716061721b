package http_handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vulpemventures/multisig-relay/internal/core/application"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/pkg/wallet"
)

var (
	badRequestErrors = []error{
		wallet.ErrMissingEnvelope,
		wallet.ErrMalformedEnvelope,
		wallet.ErrFeeBumpEnvelope,
		domain.ErrRequestIDTooLong,
		wallet.ErrInvalidAddress,
		domain.ErrMissingPrimaryAddress,
		application.ErrUnexpectedOperation,
		application.ErrUnknownSigner,
		application.ErrMissingSignature,
	}
	conflictErrors = []error{
		application.ErrAlreadySigned,
		application.ErrRequestConflict,
	}
	notFoundErrors = []error{
		domain.ErrUserNotFound,
		domain.ErrAccountNotFound,
	}
)

type errorResponse struct {
	Error       string                  `json:"error"`
	ResultCodes *domain.SubmissionError `json:"result_codes,omitempty"`
}

type secondaryAccountRequest struct {
	PrimaryAddress string `json:"primary_address"`
}

type secondaryAccountResponse struct {
	SecondaryAddress string `json:"secondary_address"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes the error body with the status code matching the kind of
// err. Ledger rejections carry along the result codes.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) {
		resp.ResultCodes = subErr
	}
	writeJSON(w, statusFromError(err), resp)
}

func statusFromError(err error) int {
	var subErr *domain.SubmissionError
	switch {
	case errors.As(err, &subErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	case isAny(err, conflictErrors):
		return http.StatusConflict
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	case isAny(err, badRequestErrors):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
