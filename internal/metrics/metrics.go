package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courseeditor",
		Name:      "actions_total",
		Help:      "Количество выполненных действий редактора курса.",
	}, []string{"action", "status"})

	actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "courseeditor",
		Name:      "action_duration_seconds",
		Help:      "Время выполнения действия редактора курса.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})

	reconciliationMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courseeditor",
		Name:      "reconciliation_misses_total",
		Help:      "Записи update для неизвестных сущностей, отброшенные клиентом.",
	}, []string{"name"})
)

func ObserveAction(action string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	actionsTotal.WithLabelValues(action, status).Inc()
	actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

func ReconciliationMiss(name string) {
	reconciliationMisses.WithLabelValues(name).Inc()
}
