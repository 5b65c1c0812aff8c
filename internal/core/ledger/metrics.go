package ledger

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veridium/ves/pkg/types"
)

// 账本执行核心 Prometheus 指标
//
// 设计原则：
// - 仅暴露少量高价值指标，避免噪音；
// - 不在热路径做复杂计算，更新开销尽量常数级；
// - 使用默认 Registry，方便通过 /metrics 统一抓取。

var (
	ledgerMetricsOnce sync.Once

	txCommittedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ves",
		Subsystem: "ledger",
		Name:      "tx_committed_total",
		Help:      "Total number of transactions atomically committed.",
	})

	txRejectedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ves",
			Subsystem: "ledger",
			Name:      "tx_rejected_total",
			Help:      "Total number of rejected transactions, labelled by fault kind (vp_rejected for explicit VP vetoes).",
		},
		[]string{"kind"},
	)

	txGasHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ves",
		Subsystem: "ledger",
		Name:      "tx_gas_used",
		Help:      "Gas consumed per transaction (tx execution plus VP validation).",
		Buckets:   prometheus.ExponentialBuckets(1000, 4, 10),
	})

	txDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ves",
		Subsystem: "ledger",
		Name:      "tx_duration_seconds",
		Help:      "Wall-clock duration of a full transaction lifecycle (decode to commit/reject).",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
	})

	vpDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ves",
		Subsystem: "ledger",
		Name:      "vp_duration_seconds",
		Help:      "Wall-clock duration of a single validity predicate run.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
	})

	vpVerdictCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ves",
			Subsystem: "ledger",
			Name:      "vp_verdicts_total",
			Help:      "Total validity predicate verdicts, labelled by verdict code.",
		},
		[]string{"verdict"},
	)

	vpCacheCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ves",
			Subsystem: "ledger",
			Name:      "vp_cache_total",
			Help:      "VP bytecode cache lookups, labelled by outcome (hit/miss).",
		},
		[]string{"outcome"},
	)
)

// initLedgerMetrics 在首次使用时注册账本指标。
func initLedgerMetrics() {
	ledgerMetricsOnce.Do(func() {
		prometheus.MustRegister(
			txCommittedCounter,
			txRejectedCounter,
			txGasHistogram,
			txDurationHistogram,
			vpDurationHistogram,
			vpVerdictCounter,
			vpCacheCounter,
		)
	})
}

// observeTxResult 按交易终态更新指标。
//
// 调用方应保证 result 非 nil；dry-run 不经过本函数。
func observeTxResult(result *types.TxResult, elapsed time.Duration) {
	initLedgerMetrics()

	if result.IsCommitted() {
		txCommittedCounter.Inc()
	} else {
		kind := "vp_rejected"
		if result.Reason != nil && result.Reason.Kind != "" {
			kind = string(result.Reason.Kind)
		}
		txRejectedCounter.WithLabelValues(kind).Inc()
	}

	txGasHistogram.Observe(float64(result.GasUsed))
	txDurationHistogram.Observe(elapsed.Seconds())
}

// observeVpRun 记录单次VP运行的裁决与耗时。
func observeVpRun(verdict types.Verdict, elapsed time.Duration) {
	initLedgerMetrics()

	vpVerdictCounter.WithLabelValues(verdict.Code.String()).Inc()
	vpDurationHistogram.Observe(elapsed.Seconds())
}

// observeVpCacheLookup 记录VP字节码缓存命中情况。
func observeVpCacheLookup(hit bool) {
	initLedgerMetrics()

	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	vpCacheCounter.WithLabelValues(outcome).Inc()
}
