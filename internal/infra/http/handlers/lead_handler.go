package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

// ActorHeader carries the id of the user performing the conversion.
const ActorHeader = "X-Actor-ID"

type LeadHandler struct {
	Converter usecase.LeadConverter
	Logger    *slog.Logger
}

func NewLeadHandler(converter usecase.LeadConverter, logger *slog.Logger) *LeadHandler {
	return &LeadHandler{
		Converter: converter,
		Logger:    logger,
	}
}

// Convert handles POST /leads/{id}/convert. A first conversion answers 201,
// a replay of the same request 200.
func (h *LeadHandler) Convert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	leadID, ok := h.leadID(w, r)
	if !ok {
		middleware.RecordConversion(usecase.CodeValidation, time.Since(start))
		return
	}

	var input usecase.ConvertLeadInput
	// Every body field is optional, so an empty body is a contact-only conversion.
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    usecase.CodeValidation,
			Message: "invalid JSON body: " + err.Error(),
		})
		middleware.RecordConversion(usecase.CodeValidation, time.Since(start))
		return
	}
	input.LeadID = leadID
	input.ActorID = r.Header.Get(ActorHeader)

	output, err := h.Converter.Execute(r.Context(), input)
	if err != nil {
		code := writeError(w, err)
		middleware.RecordConversion(code, time.Since(start))
		return
	}

	if output.Replayed {
		writeJSON(w, http.StatusOK, output)
		middleware.RecordConversion("replayed", time.Since(start))
		return
	}
	writeJSON(w, http.StatusCreated, output)
	middleware.RecordConversion("converted", time.Since(start))
}

// GetConversion handles GET /leads/{id}/conversion.
func (h *LeadHandler) GetConversion(w http.ResponseWriter, r *http.Request) {
	leadID, ok := h.leadID(w, r)
	if !ok {
		return
	}

	output, err := h.Converter.GetConversion(r.Context(), leadID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

func (h *LeadHandler) leadID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    usecase.CodeValidation,
			Message: "lead id must be a positive integer",
			Fields:  []usecase.ValidationError{{Field: "leadId", Message: "must be a positive integer"}},
		})
		return 0, false
	}
	return id, true
}
