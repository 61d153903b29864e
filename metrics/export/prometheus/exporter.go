package prometheus

import (
	"net/http"

	donorhub "github.com/MrEthical07/donorhub"
	"github.com/MrEthical07/donorhub/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() donorhub.MetricsSnapshot
	AuditDropped() uint64
}

type counterDesc struct {
	id   donorhub.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   donorhub.MetricID
	desc *prometheus.Desc
}

// PrometheusExporter is a prometheus.Collector over the engine's counters
// and validation latency histogram.
type PrometheusExporter struct {
	source       metricsSource
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *prometheus.Desc
}

var _ prometheus.Collector = (*PrometheusExporter)(nil)

// NewPrometheusExporter creates an exporter that reads from the given [donorhub.Engine].
func NewPrometheusExporter(engine *donorhub.Engine) *PrometheusExporter {
	return NewPrometheusExporterFromSource(engine)
}

// NewPrometheusExporterFromSource creates an exporter from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	p := &PrometheusExporter{
		source:       source,
		counters:     make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms:   make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		auditDropped: prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		p.counters = append(p.counters, counterDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		p.histograms = append(p.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return p
}

// Describe implements prometheus.Collector.
func (p *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range p.counters {
		ch <- c.desc
	}
	for _, h := range p.histograms {
		ch <- h.desc
	}
	ch <- p.auditDropped
}

// Collect implements prometheus.Collector. Nothing is emitted while the
// engine has metrics disabled and no audit events were dropped.
func (p *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	if p == nil || p.source == nil {
		return
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, c := range p.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(snapshot.Counters[c.id]))
	}

	for _, h := range p.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, bound := range internaldefs.HistogramUpperBounds {
			buckets[bound] = cumulative[i]
		}
		// The engine does not track a latency sum.
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(p.auditDropped, prometheus.CounterValue, float64(dropped))
}

// Register adds the exporter to reg.
func (p *PrometheusExporter) Register(reg prometheus.Registerer) error {
	return reg.Register(p)
}

// Handler serves the exporter from a private registry, so nothing leaks into
// the global default registry.
func (p *PrometheusExporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(p)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
