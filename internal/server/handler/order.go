package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/service"
)

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	Preview(ctx context.Context, req service.PreviewRequest) (service.OrderPreview, error)
	Submit(ctx context.Context, req service.SubmitRequest) (domain.OrderSet, error)
	GetSet(ctx context.Context, id string) (domain.OrderSet, error)
	ListSets(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.OrderSet, error)
}

// OrderHandler serves order-set HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	wallet string
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler. wallet is used when a request
// does not name one.
func NewOrderHandler(orders OrderService, wallet string, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, wallet: wallet, logger: logger}
}

type listSetsResponse struct {
	OrderSets []domain.OrderSet `json:"order_sets"`
}

// submitErrorResponse carries the set alongside the error when some legs
// were already sent.
type submitErrorResponse struct {
	Error    string          `json:"error"`
	OrderSet domain.OrderSet `json:"order_set"`
}

// Preview builds the orders for a request without submitting anything.
// POST /api/orders/preview
func (h *OrderHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req service.PreviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	preview, err := h.orders.Preview(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to preview orders")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// Submit builds, signs and sends an order set.
// POST /api/orders
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req service.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Wallet == "" {
		req.Wallet = h.wallet
	}

	set, err := h.orders.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrPartialSubmission) || set.ID != "" {
			writeJSON(w, statusFor(err), submitErrorResponse{Error: err.Error(), OrderSet: set})
			return
		}
		writeServiceError(w, r, h.logger, err, "failed to submit order set")
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

// List returns the order sets of a wallet, newest first.
// GET /api/orders?wallet=0x...&limit=50&offset=0
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
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
	sets, err := h.orders.ListSets(r.Context(), wallet, opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list order sets")
		return
	}
	if sets == nil {
		sets = []domain.OrderSet{}
	}
	writeJSON(w, http.StatusOK, listSetsResponse{OrderSets: sets})
}

// Get returns one order set with the status of every leg.
// GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "order set id required")
		return
	}
	set, err := h.orders.GetSet(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get order set")
		return
	}
	writeJSON(w, http.StatusOK, set)
}
