package health

import (
	"regexp"
	"time"
)

// Status values reported in Status.Status.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Status is the health verdict for one part of the data layer, optionally
// composed of the verdicts of its parts.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics carries the counters behind a verdict.
type Metrics struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastCheckedAt       time.Time `json:"last_checked_at,omitempty"`
	QueueLength         int       `json:"queue_length,omitempty"`
}

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy reports component as healthy.
func NewHealthy(component, message string) Status {
	return newStatus(component, StateHealthy, message)
}

// NewDegraded reports component as working with reduced capacity.
func NewDegraded(component, message string) Status {
	return newStatus(component, StateDegraded, message)
}

// NewUnhealthy reports component as not working.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StateUnhealthy, message)
}

func (s Status) IsHealthy() bool   { return s.Status == StateHealthy }
func (s Status) IsDegraded() bool  { return s.Status == StateDegraded }
func (s Status) IsUnhealthy() bool { return s.Status == StateUnhealthy }

// WithMetrics returns a copy of s carrying metrics.
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// WithSubStatus returns a copy of s with sub appended. The receiver's
// SubStatuses slice is never shared with the result.
func (s Status) WithSubStatus(sub Status) Status {
	subs := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subs, s.SubStatuses)
	s.SubStatuses = append(subs, sub)
	return s
}

// Aggregate rolls parts up into one verdict: the worst part wins, and no
// parts at all counts as healthy.
func Aggregate(component string, parts []Status) Status {
	worst := StateHealthy
	for _, p := range parts {
		if p.IsUnhealthy() {
			worst = StateUnhealthy
			break
		}
		if p.IsDegraded() {
			worst = StateDegraded
		}
	}

	var status Status
	switch worst {
	case StateUnhealthy:
		status = NewUnhealthy(component, "One or more parts are unhealthy")
	case StateDegraded:
		status = NewDegraded(component, "One or more parts are degraded")
	default:
		status = NewHealthy(component, "All parts are healthy")
	}
	if len(parts) > 0 {
		status.SubStatuses = append([]Status(nil), parts...)
	}
	return status
}

// FromProbe converts a prober snapshot into a Status. A backend that is
// still considered healthy but has recent failures is reported as degraded.
func FromProbe(name string, state ProbeState) Status {
	var status Status
	switch {
	case !state.Healthy:
		status = NewUnhealthy(name, "Backend unreachable")
	case state.ConsecutiveFailures > 0:
		status = NewDegraded(name, "Recent probe failures")
	default:
		status = NewHealthy(name, "Backend reachable")
	}

	if state.LastError != "" {
		status.Message = sanitizeErrorMessage(state.LastError)
	}

	return status.WithMetrics(&Metrics{
		ConsecutiveFailures: state.ConsecutiveFailures,
		LastCheckedAt:       state.LastCheckedAt,
	})
}

// Applied in order: URLs and DSNs go before paths since they contain paths.
var redactions = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`(?i)(postgres(ql)?|nats|wss?|https?)://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`(?i)\b(password|passwd|token|secret|key|credential|user)\s*[:=]\s*[^,\s}]+`), "[REDACTED]"},
	{regexp.MustCompile(`[A-Za-z]:\\[^:\s]+`), "[PATH]"},
	{regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`), "[PATH]"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP]"},
	{regexp.MustCompile(`:\d{2,5}\b`), "[PORT]"},
}

// sanitizeErrorMessage strips connection strings, credentials, paths and
// addresses from a backend error before it is exposed on /api/health.
func sanitizeErrorMessage(msg string) string {
	for _, r := range redactions {
		msg = r.re.ReplaceAllString(msg, r.with)
	}
	return msg
}
