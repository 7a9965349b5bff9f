// Package metrics exposes Prometheus counters for the auth engine. A nil
// *Recorder is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "uiauth"

// Stage attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeLimited = "rate_limited"
)

type Recorder struct {
	stageAttempts  *prometheus.CounterVec
	flowsCompleted prometheus.Counter
	tokensIssued   *prometheus.CounterVec
	tokenLogins    *prometheus.CounterVec
	noncesPruned   prometheus.Counter
	sessionsSwept  prometheus.Counter
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		stageAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_attempts_total",
			Help:      "Interactive auth stage attempts by stage and outcome.",
		}, []string{"stage", "outcome"}),
		flowsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_completed_total",
			Help:      "Interactive auth sessions that satisfied a flow.",
		}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens minted by type.",
		}, []string{"type"}),
		tokenLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_term_logins_total",
			Help:      "Short-term token logins by outcome.",
		}, []string{"outcome"}),
		noncesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonces_pruned_total",
			Help:      "Expired login nonces removed by housekeeping.",
		}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Idle auth sessions removed by housekeeping.",
		}),
	}
	reg.MustRegister(r.stageAttempts, r.flowsCompleted, r.tokensIssued, r.tokenLogins, r.noncesPruned, r.sessionsSwept)
	return r
}

func (r *Recorder) StageAttempt(stage, outcome string) {
	if r == nil {
		return
	}
	r.stageAttempts.WithLabelValues(stage, outcome).Inc()
}

func (r *Recorder) FlowCompleted() {
	if r == nil {
		return
	}
	r.flowsCompleted.Inc()
}

func (r *Recorder) TokenIssued(tokenType string) {
	if r == nil {
		return
	}
	r.tokensIssued.WithLabelValues(tokenType).Inc()
}

func (r *Recorder) ShortTermLogin(outcome string) {
	if r == nil {
		return
	}
	r.tokenLogins.WithLabelValues(outcome).Inc()
}

func (r *Recorder) NoncesPruned(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.noncesPruned.Add(float64(n))
}

func (r *Recorder) SessionsSwept(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.sessionsSwept.Add(float64(n))
}
