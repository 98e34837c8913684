package handler

import (
	"encoding/json"
	"net/http"

	"timevault/internal/ledger/models"
	dErrors "timevault/pkg/domain-errors"
	"timevault/pkg/requestcontext"
)

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain error codes onto HTTP statuses. Input-bound failures
// are 400, authorization 403, state-bound conflicts 409, resource shortfall
// 402, everything uncoded 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err)
	}
	writeJSON(w, status, errorResponse{Error: string(code), Description: err.Error()})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest,
		models.CodeUsernameTooLong,
		models.CodeTitleTooLong,
		models.CodeMessageTooLong,
		models.CodeInvalidUnlockDate:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict,
		models.CodeCapsuleStillLocked,
		models.CodeAlreadyUnlocked,
		models.CodeCapsuleCancelled:
		return http.StatusConflict
	case models.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
