package metrics

// Engine bundles the metric set the decision engine reports. One instance
// is shared by the API server and the ingestion worker.
type Engine struct {
	reg *Registry

	Ingests        *Counter
	IngestFailures *Counter
	Fallbacks      *Counter
	Documents      *Gauge
	QuerySeconds   *Histogram
	IngestSeconds  *Histogram
}

// NewEngine registers the engine metric set on reg.
func NewEngine(reg *Registry) *Engine {
	return &Engine{
		reg:            reg,
		Ingests:        reg.Counter("engine_ingests_total", "Documents ingested"),
		IngestFailures: reg.Counter("engine_ingest_failures_total", "Documents that failed ingestion"),
		Fallbacks:      reg.Counter("engine_collaborator_fallbacks_total", "Queries answered without the language-model collaborator"),
		Documents:      reg.Gauge("engine_documents", "Documents currently searchable"),
		QuerySeconds:   reg.Histogram("engine_query_seconds", "Query pipeline latency", nil),
		IngestSeconds:  reg.Histogram("engine_ingest_seconds", "Ingestion pipeline latency", nil),
	}
}

// Decision counts one verdict by label.
func (e *Engine) Decision(label string) {
	e.reg.Counter(WithLabels("engine_decisions_total", "label", label), "Decisions by verdict").Inc()
}
