// Package metrics exposes engine and HTTP metrics to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

const namespace = "parimutuel"

// Recorder implements wager.Observer and records HTTP traffic. Each Recorder
// owns its registry so tests can build as many as they like.
type Recorder struct {
	registry *prometheus.Registry
	decimals int32

	operations  *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	funds       *prometheus.CounterVec
	httpReqs    *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

// NewRecorder creates a Recorder. decimals is the settlement token's
// precision; fund counters are kept in whole token units.
func NewRecorder(decimals int32) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		decimals: decimals,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Engine operations by name and result",
			},
			[]string{"op", "result"},
		),
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Engine operation latency including the match guard wait",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		funds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "funds_moved_total",
				Help:      "Tokens moved through escrow by flow, in whole token units",
			},
			[]string{"flow"},
		),
		httpReqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	r.registry.MustRegister(
		r.operations,
		r.opDuration,
		r.funds,
		r.httpReqs,
		r.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// OperationDone records one engine operation.
func (r *Recorder) OperationDone(op string, err error, elapsed time.Duration) {
	r.operations.WithLabelValues(op, resultLabel(err)).Inc()
	r.opDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// FundsMoved adds amount to the counter of flow.
func (r *Recorder) FundsMoved(flow string, amount *uint256.Int) {
	d, err := decimal.NewFromString(amount.Dec())
	if err != nil {
		return
	}
	f, _ := d.Shift(-r.decimals).Float64()
	r.funds.WithLabelValues(flow).Add(f)
}

// ObserveHTTP records one served request. route is the mux pattern, never
// the raw path, to keep label cardinality bounded.
func (r *Recorder) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	r.httpReqs.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

var resultLabels = []struct {
	err   error
	label string
}{
	{domain.ErrUnauthorized, "unauthorized"},
	{domain.ErrNotFound, "not_found"},
	{domain.ErrAlreadyExists, "already_exists"},
	{domain.ErrFeeTooHigh, "fee_too_high"},
	{domain.ErrNotOpen, "not_open"},
	{domain.ErrZeroAmount, "zero_amount"},
	{domain.ErrInvalidOutcome, "invalid_outcome"},
	{domain.ErrAlreadyFinalized, "already_finalized"},
	{domain.ErrBadStatus, "bad_status"},
	{domain.ErrInvalidResult, "invalid_result"},
	{domain.ErrBadSignature, "bad_signature"},
	{domain.ErrStaleSignature, "stale_signature"},
	{domain.ErrNotSettled, "not_settled"},
	{domain.ErrNotCancelled, "not_cancelled"},
	{domain.ErrAlreadyClaimed, "already_claimed"},
	{domain.ErrNoWinningBet, "no_winning_bet"},
	{domain.ErrNoStake, "no_stake"},
	{domain.ErrZeroAddress, "zero_address"},
	{domain.ErrReentrantCall, "reentrant_call"},
	{domain.ErrArithmeticOverflow, "overflow"},
	{domain.ErrInsufficientBalance, "insufficient_balance"},
	{domain.ErrLockHeld, "lock_held"},
	{domain.ErrLockLost, "lock_lost"},
}

// resultLabel maps an operation error to a bounded label value.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	for _, rl := range resultLabels {
		if errors.Is(err, rl.err) {
			return rl.label
		}
	}
	return "error"
}
