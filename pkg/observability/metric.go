package observability

// MetricType distinguishes the supported measurement shapes.
type MetricType string

const (
	// MetricCounter accumulates monotonically increasing values.
	MetricCounter MetricType = "counter"
	// MetricHistogram records value distributions.
	MetricHistogram MetricType = "histogram"
)

// Metric is a single measurement emitted by a component.
type Metric struct {
	Name        string
	Type        MetricType
	Value       float64
	Unit        string
	Description string
	Labels      map[string]string
}

// MetricsCollector aggregates measurements for exposure.
type MetricsCollector interface {
	Collect(Metric)
}

// MetricsCollectorFunc adapts a function into a MetricsCollector.
type MetricsCollectorFunc func(Metric)

// Collect implements MetricsCollector.
func (f MetricsCollectorFunc) Collect(metric Metric) {
	f(metric)
}

// NoopCollector discards all measurements.
type NoopCollector struct{}

// Collect implements MetricsCollector.
func (NoopCollector) Collect(Metric) {}

var (
	_ MetricsCollector = MetricsCollectorFunc(nil)
	_ MetricsCollector = NoopCollector{}
)
