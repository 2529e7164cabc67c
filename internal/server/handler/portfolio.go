package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// PortfolioService defines the methods that the portfolio handler requires
// from the service layer.
type PortfolioService interface {
	Latest(ctx context.Context, wallet string) (domain.PortfolioSnapshot, error)
	Refresh(ctx context.Context, wallet string) (domain.PortfolioSnapshot, error)
	History(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.PortfolioSnapshot, error)
}

// PortfolioHandler serves portfolio valuation endpoints.
type PortfolioHandler struct {
	portfolio PortfolioService
	wallet    string
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolio PortfolioService, wallet string, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, wallet: wallet, logger: logger}
}

type historyResponse struct {
	Snapshots []domain.PortfolioSnapshot `json:"snapshots"`
}

// Get returns the latest portfolio of a wallet.
// GET /api/portfolio?wallet=0x...
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.portfolio.Latest, "failed to load portfolio")
}

// Refresh recomputes the portfolio from fresh account and oracle data.
// POST /api/portfolio/refresh?wallet=0x...
func (h *PortfolioHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.portfolio.Refresh, "failed to refresh portfolio")
}

func (h *PortfolioHandler) serve(
	w http.ResponseWriter,
	r *http.Request,
	load func(context.Context, string) (domain.PortfolioSnapshot, error),
	msg string,
) {
	wallet := walletParam(r, h.wallet)
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter required")
		return
	}
	snap, err := load(r.Context(), wallet)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msg)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// History returns stored snapshots of a wallet, newest first.
// GET /api/portfolio/history?wallet=0x...&since=...&limit=50
func (h *PortfolioHandler) History(w http.ResponseWriter, r *http.Request) {
	wallet := walletParam(r, h.wallet)
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter required")
		return
	}
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snaps, err := h.portfolio.History(r.Context(), wallet, opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load portfolio history")
		return
	}
	if snaps == nil {
		snaps = []domain.PortfolioSnapshot{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Snapshots: snaps})
}
