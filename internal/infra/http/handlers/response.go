package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xavierca1/ligue-crm/internal/usecase"
)

type ErrorResponse struct {
	Code    string                    `json:"code"`
	Message string                    `json:"message"`
	Fields  []usecase.ValidationError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps usecase error codes onto HTTP statuses.
func statusFor(code string) int {
	switch code {
	case usecase.CodeValidation:
		return http.StatusBadRequest
	case usecase.CodeLeadNotFound, usecase.CodeAccountNotFound:
		return http.StatusNotFound
	case usecase.CodeConflict:
		return http.StatusConflict
	case usecase.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) string {
	resp := ErrorResponse{Code: usecase.ErrorCode(err), Message: err.Error()}
	if resp.Code == "" {
		resp.Code = usecase.CodeTransaction
		resp.Message = "internal error"
	}

	var de *usecase.DomainError
	if errors.As(err, &de) {
		resp.Fields = de.Fields
	}

	writeJSON(w, statusFor(resp.Code), resp)
	return resp.Code
}
