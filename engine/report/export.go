package report

import "github.com/beakerflow/beaker/pkg/metrics"

// Export renders the report's edge counts and wall-clock duration into reg,
// so a long-lived process can serve the most recent run's numbers over
// /metrics alongside its other counters and gauges.
func (r *RunReport) Export(reg *metrics.Registry) {
	for from, tos := range r.Nodes {
		for to, n := range tos {
			name := metrics.WithLabels("beaker_run_edge_records_total", "from", from, "to", to)
			reg.Counter(name, "records routed across a pipeline edge during the most recent run").Add(int64(n))
		}
	}
	reg.Gauge("beaker_run_duration_seconds", "wall-clock duration of the most recent run, in seconds").
		SetFloat(r.Duration().Seconds())
}
