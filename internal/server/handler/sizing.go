package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/perpdash/internal/service"
)

// SizingService defines the methods that the sizing handler requires from
// the service layer.
type SizingService interface {
	Convert(req service.ConvertRequest) (service.SizeQuote, error)
	SizeForPercentage(ctx context.Context, mq service.MaxQuery, pct int64) (service.SizeQuote, error)
	PercentageForSize(ctx context.Context, mq service.MaxQuery, size int64) (service.SizeQuote, error)
}

// SizingHandler serves the size, notional and percentage conversions.
type SizingHandler struct {
	sizing SizingService
	wallet string
	logger *slog.Logger
}

// NewSizingHandler creates a SizingHandler.
func NewSizingHandler(sizing SizingService, wallet string, logger *slog.Logger) *SizingHandler {
	return &SizingHandler{sizing: sizing, wallet: wallet, logger: logger}
}

// Convert turns a size into a notional or a notional into a size.
// POST /api/sizing/convert
func (h *SizingHandler) Convert(w http.ResponseWriter, r *http.Request) {
	var req service.ConvertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := h.sizing.Convert(req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to convert size")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type percentageRequest struct {
	service.MaxQuery
	Percentage *int64 `json:"percentage,omitempty"`
	Size       *int64 `json:"size,omitempty"`
}

// Percentage sizes an order as a share of the venue's maximum, or reports
// which share a given size represents. Exactly one of percentage and size
// must be set.
// POST /api/sizing/percentage
func (h *SizingHandler) Percentage(w http.ResponseWriter, r *http.Request) {
	var req percentageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Wallet == "" {
		req.Wallet = h.wallet
	}
	if (req.Percentage == nil) == (req.Size == nil) {
		writeError(w, http.StatusBadRequest, "exactly one of percentage or size is required")
		return
	}

	var (
		quote service.SizeQuote
		err   error
	)
	if req.Percentage != nil {
		quote, err = h.sizing.SizeForPercentage(r.Context(), req.MaxQuery, *req.Percentage)
	} else {
		quote, err = h.sizing.PercentageForSize(r.Context(), req.MaxQuery, *req.Size)
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to compute size")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
