package status

import "sync/atomic"

// Registry holds process-wide counters and labels.
// Components cache pointers at construction and write atomics directly.
type Registry struct {
	Counters *MetricMap[atomic.Int64]
	Labels   *MetricMap[AtomicString]
}

// NewRegistry creates an initialized Registry
func NewRegistry() *Registry {
	return &Registry{
		Counters: NewMetricMap[atomic.Int64](),
		Labels:   NewMetricMap[AtomicString](),
	}
}

// Counter returns the named counter
func (r *Registry) Counter(name string) *atomic.Int64 {
	return r.Counters.Get(name)
}

// SetLabel stores a named label value
func (r *Registry) SetLabel(name, value string) {
	r.Labels.Get(name).Store(value)
}

// Report is a point-in-time copy of the registry
type Report struct {
	Counters map[string]int64  `json:"counters"`
	Labels   map[string]string `json:"labels"`
}

// Snapshot copies all current values
func (r *Registry) Snapshot() Report {
	rep := Report{
		Counters: make(map[string]int64, r.Counters.Count()),
		Labels:   make(map[string]string, r.Labels.Count()),
	}
	r.Counters.Range(func(key string, c *atomic.Int64) {
		rep.Counters[key] = c.Load()
	})
	r.Labels.Range(func(key string, l *AtomicString) {
		rep.Labels[key] = l.Load()
	})
	return rep
}
