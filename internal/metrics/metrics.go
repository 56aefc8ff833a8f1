package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sharing holds the business counters of the sharing workflow.
// A nil *Sharing is valid and records nothing.
type Sharing struct {
	sharesCreated       prometheus.Counter
	signaturesSubmitted *prometheus.CounterVec
	sharesCompleted     prometheus.Counter
	completionsNotified prometheus.Counter
	watcherPollErrors   prometheus.Counter
}

// NewSharing creates the sharing counters and registers them on reg.
func NewSharing(reg prometheus.Registerer) (*Sharing, error) {
	m := &Sharing{
		sharesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shares_created_total",
			Help: "Total number of document shares created.",
		}),
		signaturesSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signatures_submitted_total",
				Help: "Total number of signatures accepted, by role.",
			},
			[]string{"role"},
		),
		sharesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shares_completed_total",
			Help: "Total number of shares whose last role slot was filled.",
		}),
		completionsNotified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "completion_notifications_total",
			Help: "Total number of completion notifications delivered by the watcher.",
		}),
		watcherPollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watcher_poll_errors_total",
			Help: "Total number of failed watcher polls.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.sharesCreated,
		m.signaturesSubmitted,
		m.sharesCompleted,
		m.completionsNotified,
		m.watcherPollErrors,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Sharing) ShareCreated() {
	if m == nil {
		return
	}
	m.sharesCreated.Inc()
}

func (m *Sharing) SignatureSubmitted(role string) {
	if m == nil {
		return
	}
	m.signaturesSubmitted.WithLabelValues(role).Inc()
}

func (m *Sharing) ShareCompleted() {
	if m == nil {
		return
	}
	m.sharesCompleted.Inc()
}

func (m *Sharing) CompletionNotified() {
	if m == nil {
		return
	}
	m.completionsNotified.Inc()
}

func (m *Sharing) PollFailed() {
	if m == nil {
		return
	}
	m.watcherPollErrors.Inc()
}
