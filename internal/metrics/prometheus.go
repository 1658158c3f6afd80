package metrics

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crypto-tokens-bot/blockchain-manager/internal/model"
)

// PrometheusRecorder implements Recorder with Prometheus collectors.
// Registration errors are logged and never propagated.
type PrometheusRecorder struct {
	logger *zap.Logger

	contractEventsTotal *prometheus.CounterVec
	lastEventBlock      *prometheus.GaugeVec

	stakesTotal       prometheus.Counter
	stakedAmountTotal prometheus.Counter

	unstakesTotal       *prometheus.CounterVec
	unstakedAmountTotal prometheus.Counter

	swapsTotal      *prometheus.CounterVec
	swapAmountTotal *prometheus.CounterVec

	withdrawalsTotal      *prometheus.CounterVec
	withdrawalAmountTotal *prometheus.CounterVec
	withdrawalDuration    prometheus.Histogram

	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

var (
	_ Recorder    = (*PrometheusRecorder)(nil)
	_ JobObserver = (*PrometheusRecorder)(nil)
)

// NewPrometheusRecorder creates collectors and registers them on reg.
func NewPrometheusRecorder(reg prometheus.Registerer, logger *zap.Logger) *PrometheusRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &PrometheusRecorder{logger: logger}
	r.initEventMetrics(reg)
	r.initStrategyMetrics(reg)
	r.initJobMetrics(reg)
	return r
}

func (r *PrometheusRecorder) initEventMetrics(reg prometheus.Registerer) {
	r.contractEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manager_contract_events_total",
		Help: "Total number of contract events dispatched.",
	}, []string{"contract", "event"})
	r.lastEventBlock = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "manager_contract_event_last_block",
		Help: "Block number of the last dispatched event per contract.",
	}, []string{"contract"})

	r.register(reg, r.contractEventsTotal, "manager_contract_events_total")
	r.register(reg, r.lastEventBlock, "manager_contract_event_last_block")
}

func (r *PrometheusRecorder) initStrategyMetrics(reg prometheus.Registerer) {
	r.stakesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "manager_stakes_total",
		Help: "Total number of completed stake operations.",
	})
	r.stakedAmountTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "manager_staked_amount_total",
		Help: "Sum of staked amounts in smallest units.",
	})
	r.unstakesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manager_unstakes_total",
		Help: "Total number of completed unstake operations by mode.",
	}, []string{"mode"})
	r.unstakedAmountTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "manager_unstaked_amount_total",
		Help: "Sum of raw unstaked amounts in smallest units.",
	})
	r.swapsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manager_swaps_total",
		Help: "Total number of completed swaps by direction.",
	}, []string{"direction"})
	r.swapAmountTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manager_swap_amount_total",
		Help: "Sum of swapped input amounts in smallest units by direction.",
	}, []string{"direction"})
	r.withdrawalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manager_withdrawals_total",
		Help: "Total number of withdrawal pipeline runs by final status.",
	}, []string{"status"})
	r.withdrawalAmountTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manager_withdrawal_amount_total",
		Help: "Sum of requested MMM withdrawal amounts by final status.",
	}, []string{"status"})
	r.withdrawalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "manager_withdrawal_duration_seconds",
		Help:    "Duration of withdrawal pipeline runs in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	r.register(reg, r.stakesTotal, "manager_stakes_total")
	r.register(reg, r.stakedAmountTotal, "manager_staked_amount_total")
	r.register(reg, r.unstakesTotal, "manager_unstakes_total")
	r.register(reg, r.unstakedAmountTotal, "manager_unstaked_amount_total")
	r.register(reg, r.swapsTotal, "manager_swaps_total")
	r.register(reg, r.swapAmountTotal, "manager_swap_amount_total")
	r.register(reg, r.withdrawalsTotal, "manager_withdrawals_total")
	r.register(reg, r.withdrawalAmountTotal, "manager_withdrawal_amount_total")
	r.register(reg, r.withdrawalDuration, "manager_withdrawal_duration_seconds")
}

func (r *PrometheusRecorder) initJobMetrics(reg prometheus.Registerer) {
	r.jobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "manager_jobs_total",
		Help: "Total number of processed queue jobs by event and outcome.",
	}, []string{"event", "outcome"})
	r.jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "manager_job_duration_seconds",
		Help:    "Queue job handling latency in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"event"})

	r.register(reg, r.jobsTotal, "manager_jobs_total")
	r.register(reg, r.jobDuration, "manager_job_duration_seconds")
}

func (r *PrometheusRecorder) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if reg == nil {
		return
	}
	if err := reg.Register(c); err != nil {
		r.logger.Warn("metrics: failed to register collector", zap.String("name", name), zap.Error(err))
	}
}

func (r *PrometheusRecorder) WriteContractEvent(event model.ContractEvent) {
	r.contractEventsTotal.WithLabelValues(event.Contract, string(event.Name)).Inc()
	r.lastEventBlock.WithLabelValues(event.Contract).Set(float64(event.BlockNumber))
}

func (r *PrometheusRecorder) WriteStakingInfo(info StakingInfo) {
	r.stakesTotal.Inc()
	r.stakedAmountTotal.Add(amountFloat(info.Amount))
}

func (r *PrometheusRecorder) WriteUnstakingInfo(info UnstakingInfo) {
	r.unstakesTotal.WithLabelValues(info.Mode).Inc()
	r.unstakedAmountTotal.Add(amountFloat(info.Amount))
}

func (r *PrometheusRecorder) WriteSwapInfo(info SwapInfo) {
	direction := string(info.Direction)
	r.swapsTotal.WithLabelValues(direction).Inc()
	r.swapAmountTotal.WithLabelValues(direction).Add(amountFloat(info.Amount))
}

func (r *PrometheusRecorder) WriteWithdrawalMetrics(info WithdrawalInfo) {
	status := string(info.Status)
	r.withdrawalsTotal.WithLabelValues(status).Inc()
	r.withdrawalAmountTotal.WithLabelValues(status).Add(amountFloat(info.MMMAmount))
	if info.Duration > 0 {
		r.withdrawalDuration.Observe(info.Duration.Seconds())
	}
}

func (r *PrometheusRecorder) ObserveJob(event string, outcome string, duration time.Duration) {
	r.jobsTotal.WithLabelValues(event, outcome).Inc()
	r.jobDuration.WithLabelValues(event).Observe(duration.Seconds())
}

func amountFloat(v *big.Int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	return decimal.NewFromBigInt(v, 0).InexactFloat64()
}
