package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/service"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubOrders struct {
	preview  service.OrderPreview
	set      domain.OrderSet
	err      error
	lastSub  service.SubmitRequest
	lastOpts domain.ListOpts
	wallet   string
}

func (s *stubOrders) Preview(_ context.Context, req service.PreviewRequest) (service.OrderPreview, error) {
	return s.preview, s.err
}

func (s *stubOrders) Submit(_ context.Context, req service.SubmitRequest) (domain.OrderSet, error) {
	s.lastSub = req
	return s.set, s.err
}

func (s *stubOrders) GetSet(_ context.Context, id string) (domain.OrderSet, error) {
	if s.err != nil {
		return domain.OrderSet{}, s.err
	}
	if id != s.set.ID {
		return domain.OrderSet{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}
	return s.set, nil
}

func (s *stubOrders) ListSets(_ context.Context, wallet string, opts domain.ListOpts) ([]domain.OrderSet, error) {
	s.wallet, s.lastOpts = wallet, opts
	if s.err != nil {
		return nil, s.err
	}
	if s.set.ID == "" {
		return nil, nil
	}
	return []domain.OrderSet{s.set}, nil
}

func do(t *testing.T, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	pattern := method + " " + strings.SplitN(target, "?", 2)[0]
	if strings.HasPrefix(target, "/api/orders/") && method == http.MethodGet {
		pattern = "GET /api/orders/{id}"
	}
	mux.HandleFunc(pattern, h)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domain.ErrInvalidScaleSpec), http.StatusBadRequest},
		{domain.ErrLegBelowMinimum, http.StatusBadRequest},
		{domain.ErrMissingPrice, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrLockHeld, http.StatusConflict},
		{domain.ErrDuplicateSet, http.StatusConflict},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrPartialSubmission, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestParseListOpts(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    domain.ListOpts
		wantErr bool
	}{
		{name: "defaults", query: "", want: domain.ListOpts{Limit: 50}},
		{name: "limit capped", query: "limit=9999&offset=10", want: domain.ListOpts{Limit: 500, Offset: 10}},
		{name: "bad limit", query: "limit=abc", wantErr: true},
		{name: "negative offset", query: "offset=-1", wantErr: true},
		{name: "bad since", query: "since=yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
			got, err := parseListOpts(r)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	r := httptest.NewRequest(http.MethodGet, "/x?since=2026-01-02T03:04:05Z", nil)
	got, err := parseListOpts(r)
	require.NoError(t, err)
	require.NotNil(t, got.Since)
	assert.True(t, got.Since.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Nil(t, got.Until)
}

func TestOrderHandlerPreview(t *testing.T) {
	price := int64(100 * domain.Precision)
	orders := &stubOrders{preview: service.OrderPreview{
		Orders:    []domain.GeneratedOrder{{Size: 5, Price: &price, Tag: domain.LegTagPrimary}},
		TotalSize: 5,
	}}
	h := NewOrderHandler(orders, "", discardLogger())

	rec := do(t, h.Preview, http.MethodPost, "/api/orders/preview",
		`{"intent":{"market_index":0,"direction":"long","kind":"limit","size":5,"price":100000000}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[service.OrderPreview](t, rec)
	assert.Equal(t, int64(5), got.TotalSize)
	require.Len(t, got.Orders, 1)

	rec = do(t, h.Preview, http.MethodPost, "/api/orders/preview", `{"bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	orders.err = fmt.Errorf("order: %w", domain.ErrInvalidScaleSpec)
	rec = do(t, h.Preview, http.MethodPost, "/api/orders/preview", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrInvalidScaleSpec.Error())
}

func TestOrderHandlerSubmit(t *testing.T) {
	tests := []struct {
		name       string
		set        domain.OrderSet
		err        error
		wantStatus int
		wantSet    bool
	}{
		{name: "created", set: domain.OrderSet{ID: "s1", Status: domain.SetStatusSubmitted}, wantStatus: http.StatusCreated, wantSet: true},
		{
			name:       "partial keeps set",
			set:        domain.OrderSet{ID: "s2", Status: domain.SetStatusPartial},
			err:        fmt.Errorf("service: %w", domain.ErrPartialSubmission),
			wantStatus: http.StatusBadGateway,
			wantSet:    true,
		},
		{name: "rate limited", err: domain.ErrRateLimited, wantStatus: http.StatusTooManyRequests},
		{name: "internal", err: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &stubOrders{set: tt.set, err: tt.err}
			h := NewOrderHandler(orders, "0xdefault", discardLogger())

			rec := do(t, h.Submit, http.MethodPost, "/api/orders",
				`{"subaccount":1,"intent":{"market_index":0,"direction":"short","kind":"market","size":1}}`)
			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "0xdefault", orders.lastSub.Wallet)
			assert.Equal(t, 1, orders.lastSub.Subaccount)

			if tt.wantSet {
				assert.Contains(t, rec.Body.String(), `"id":"`+tt.set.ID+`"`)
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "db down")
			}
		})
	}
}

func TestOrderHandlerListAndGet(t *testing.T) {
	orders := &stubOrders{set: domain.OrderSet{ID: "abc", Wallet: "0xw"}}
	h := NewOrderHandler(orders, "", discardLogger())

	rec := do(t, h.List, http.MethodGet, "/api/orders", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.List, http.MethodGet, "/api/orders?wallet=0xw&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0xw", orders.wallet)
	assert.Equal(t, 5, orders.lastOpts.Limit)
	got := decode[listSetsResponse](t, rec)
	require.Len(t, got.OrderSets, 1)

	rec = do(t, h.Get, http.MethodGet, "/api/orders/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", decode[domain.OrderSet](t, rec).ID)

	rec = do(t, h.Get, http.MethodGet, "/api/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderHandlerListEmptyIsArray(t *testing.T) {
	h := NewOrderHandler(&stubOrders{}, "0xw", discardLogger())
	rec := do(t, h.List, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"order_sets":[]}`, rec.Body.String())
}
