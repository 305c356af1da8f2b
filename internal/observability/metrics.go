package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes engine and HTTP counters.
type Metrics struct {
	sweeps            *prometheus.CounterVec
	sweepDuration     prometheus.Histogram
	evaluated         prometheus.Counter
	escalations       *prometheus.CounterVec
	breaches          prometheus.Counter
	conflicts         *prometheus.CounterVec
	assignments       prometheus.Counter
	noEligibleStaff   prometheus.Counter
	unknownCategories prometheus.Counter
	notifications     *prometheus.CounterVec
	pointsAwarded     prometheus.Counter
	requests          *prometheus.CounterVec
	requestErrors     *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Tests pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaint_sweeps_total",
			Help: "SLA sweeps by outcome.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "complaint_sweep_duration_seconds",
			Help:    "Duration of completed SLA sweeps.",
			Buckets: prometheus.DefBuckets,
		}),
		evaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "complaint_sla_evaluations_total",
			Help: "Complaints evaluated by SLA sweeps.",
		}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaint_escalations_total",
			Help: "Escalation transitions by target level.",
		}, []string{"level"}),
		breaches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "complaint_sla_breaches_total",
			Help: "Complaints observed breaching their deadline.",
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaint_write_conflicts_total",
			Help: "Conditional writes rejected by a concurrent change.",
		}, []string{"operation", "outcome"}),
		assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "complaint_assignments_total",
			Help: "Complaints bound to a staff member.",
		}),
		noEligibleStaff: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "complaint_no_eligible_staff_total",
			Help: "Assignment attempts without a matching staff member.",
		}),
		unknownCategories: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "complaint_unknown_category_total",
			Help: "Complaints routed to Unassigned for review.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaint_notifications_total",
			Help: "Notification deliveries by event type and outcome.",
		}, []string{"event", "outcome"}),
		pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staff_points_awarded_total",
			Help: "Points awarded to staff on resolution.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "HTTP error responses by route, method and code.",
		}, []string{"path", "method", "code"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.sweeps, m.sweepDuration, m.evaluated, m.escalations, m.breaches, m.conflicts,
			m.assignments, m.noEligibleStaff, m.unknownCategories, m.notifications,
			m.pointsAwarded, m.requests, m.requestErrors,
		)
	}
	return m
}

// RecordSweep records a sweep outcome ("ok", "skipped", "aborted").
func (m *Metrics) RecordSweep(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(result).Inc()
	if result != "skipped" {
		m.sweepDuration.Observe(duration.Seconds())
	}
}

// RecordEvaluation counts one evaluated complaint.
func (m *Metrics) RecordEvaluation() {
	if m == nil {
		return
	}
	m.evaluated.Inc()
}

// RecordEscalation counts a transition into level.
func (m *Metrics) RecordEscalation(level int) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordBreach counts a newly observed SLA breach.
func (m *Metrics) RecordBreach() {
	if m == nil {
		return
	}
	m.breaches.Inc()
}

// RecordConflict counts a rejected conditional write; outcome is "retried" or "deferred".
func (m *Metrics) RecordConflict(operation, outcome string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation, outcome).Inc()
}

// RecordAssignments counts complaints bound to staff.
func (m *Metrics) RecordAssignments(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.assignments.Add(float64(n))
}

// RecordNoEligibleStaff counts an assignment attempt without candidates.
func (m *Metrics) RecordNoEligibleStaff() {
	if m == nil {
		return
	}
	m.noEligibleStaff.Inc()
}

// RecordUnknownCategory counts a complaint routed to Unassigned.
func (m *Metrics) RecordUnknownCategory() {
	if m == nil {
		return
	}
	m.unknownCategories.Inc()
}

// RecordNotification counts a delivery attempt.
func (m *Metrics) RecordNotification(event string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.notifications.WithLabelValues(event, outcome).Inc()
}

// RecordPoints counts points awarded.
func (m *Metrics) RecordPoints(points int) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsAwarded.Add(float64(points))
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.requestErrors.WithLabelValues(path, method, code).Inc()
}
