// Package metrics - метрики клиентского ядра для Prometheus.
//
// Экспортируются через /metrics моста:
//   - tradelock_backend_requests_total{path,result}
//   - tradelock_backend_request_duration_seconds{path}
//   - tradelock_operations_total{op,path,result}: path = remote|local
//   - tradelock_fallbacks_total{op}: переходы remote -> local после сетевой ошибки
//   - tradelock_trade_transitions_total{to}
//   - tradelock_settlements_total{type,status}
//   - tradelock_online: 1 online, 0 offline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelock_backend_requests_total",
		Help: "Backend REST calls by endpoint and result",
	}, []string{"path", "result"})

	BackendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradelock_backend_request_duration_seconds",
		Help:    "Backend REST call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})

	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelock_operations_total",
		Help: "Repository operations by execution path and result",
	}, []string{"op", "path", "result"})

	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelock_fallbacks_total",
		Help: "Remote calls retried on the local path after a connectivity failure",
	}, []string{"op"})

	TradeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelock_trade_transitions_total",
		Help: "Trade status transitions applied locally",
	}, []string{"to"})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradelock_settlements_total",
		Help: "Offline payment settlements by type and final status",
	}, []string{"type", "status"})

	Online = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradelock_online",
		Help: "Connectivity gate mode, 1 when online",
	})
)

// Result сводит ошибку к метке result
func Result(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}

// SetOnline выставляет gauge режима
func SetOnline(online bool) {
	if online {
		Online.Set(1)
	} else {
		Online.Set(0)
	}
}
