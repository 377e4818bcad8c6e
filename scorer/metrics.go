package scorer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/boostscore/core"
)

const (
	modeOne    = "one"
	modeBatch  = "batch"
	modeStream = "stream"
)

var (
	// instancesScored 按调用方式统计打分条数
	instancesScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boostscore_instances_scored_total",
		Help: "Total instances scored by mode",
	}, []string{"mode"})

	// scoreErrors 按错误码统计失败
	scoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boostscore_score_errors_total",
		Help: "Total scoring errors by error code",
	}, []string{"code"})

	// scoreLatency 单条打分耗时
	scoreLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "boostscore_score_duration_seconds",
		Help:    "Per-instance scoring duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1µs ~ 260ms
	})
)

func observeError(err error) {
	code := core.ErrorCodeInternalError
	if de := core.GetDomainError(err); de != nil {
		code = de.Code
	}
	scoreErrors.WithLabelValues(code).Inc()
}
