// Package metrics exposes Prometheus instruments for order generation,
// submission and portfolio refreshes.
//
//	perpdash_orders_generated_total{kind,tag}
//	perpdash_order_legs_total{status}
//	perpdash_order_sets_total{status}
//	perpdash_portfolio_refresh_seconds
//	perpdash_portfolio_refresh_errors_total
//	perpdash_portfolio_net_total{wallet}
//	perpdash_portfolio_unsettled_pnl{wallet}
//	perpdash_oracle_price{market}
//	perpdash_oracle_updates_total
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

const namespace = "perpdash"

// Metrics owns a private registry so tests can build as many as they like.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	ordersGenerated *prometheus.CounterVec
	legs            *prometheus.CounterVec
	sets            *prometheus.CounterVec
	refreshSeconds  prometheus.Histogram
	refreshErrors   prometheus.Counter
	netTotal        *prometheus.GaugeVec
	unsettledPnl    *prometheus.GaugeVec
	oraclePrice     *prometheus.GaugeVec
	oracleUpdates   prometheus.Counter
}

// New registers every instrument plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_generated_total",
			Help: "Orders produced by the order builder.",
		}, []string{"kind", "tag"}),
		legs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_legs_total",
			Help: "Order legs sent to the venue by final status.",
		}, []string{"status"}),
		sets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_sets_total",
			Help: "Order sets submitted by final status.",
		}, []string{"status"}),
		refreshSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "portfolio_refresh_seconds",
			Help:    "Latency of a full portfolio refresh.",
			Buckets: prometheus.DefBuckets,
		}),
		refreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "portfolio_refresh_errors_total",
			Help: "Failed portfolio refreshes.",
		}),
		netTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "portfolio_net_total",
			Help: "Wallet net total in quote units.",
		}, []string{"wallet"}),
		unsettledPnl: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "portfolio_unsettled_pnl",
			Help: "Wallet unsettled PnL in quote units.",
		}, []string{"wallet"}),
		oraclePrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "oracle_price",
			Help: "Last oracle price per market in quote units.",
		}, []string{"market"}),
		oracleUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "oracle_updates_total",
			Help: "Oracle price updates received from the feed.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ordersGenerated, m.legs, m.sets,
		m.refreshSeconds, m.refreshErrors, m.netTotal, m.unsettledPnl,
		m.oraclePrice, m.oracleUpdates,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OrdersGenerated counts every order of a built set.
func (m *Metrics) OrdersGenerated(orders []domain.GeneratedOrder) {
	if m == nil {
		return
	}
	for _, o := range orders {
		m.ordersGenerated.WithLabelValues(string(o.Kind), tagLabel(o.Tag)).Inc()
	}
}

// SetSubmitted records the outcome of a submitted set and its legs.
func (m *Metrics) SetSubmitted(set domain.OrderSet) {
	if m == nil {
		return
	}
	m.sets.WithLabelValues(string(set.Status)).Inc()
	for _, o := range set.Orders {
		m.legs.WithLabelValues(string(o.Status)).Inc()
	}
}

// RefreshDone observes a portfolio refresh.
func (m *Metrics) RefreshDone(wallet string, started time.Time, totals domain.PortfolioTotals, err error) {
	if m == nil {
		return
	}
	m.refreshSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		m.refreshErrors.Inc()
		return
	}
	w := strings.ToLower(wallet)
	m.netTotal.WithLabelValues(w).Set(quote(totals.NetTotal))
	m.unsettledPnl.WithLabelValues(w).Set(quote(totals.UnsettledPnl))
}

// OracleUpdate records a price from the feed.
func (m *Metrics) OracleUpdate(p domain.OraclePrice) {
	if m == nil {
		return
	}
	m.oracleUpdates.Inc()
	m.oraclePrice.WithLabelValues(strconv.Itoa(p.MarketIndex)).Set(quote(p.Price))
}

// quote converts a fixed-point amount for display only.
func quote(v int64) float64 {
	return float64(v) / float64(domain.Precision)
}

// tagLabel folds scale_leg_<i> into one label value to bound cardinality.
func tagLabel(t domain.LegTag) string {
	if strings.HasPrefix(string(t), "scale_leg_") {
		return "scale_leg"
	}
	return string(t)
}
