package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	donorhub "github.com/MrEthical07/donorhub"
	"github.com/MrEthical07/donorhub/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() donorhub.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         donorhub.MetricID
	instrument metric.Int64ObservableCounter
}

// observedHistogram publishes cumulative bucket counts on a single gauge,
// one data point per "le" bound.
type observedHistogram struct {
	id      donorhub.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine counters as observable OTel instruments.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter
	bucketAttrs  []metric.ObserveOption
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *donorhub.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments on meter that read from
// source. A single callback snapshots the source once per collection.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:      source,
		counters:    make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms:  make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
		bucketAttrs: bucketAttributes(),
	}
	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+2*len(internaldefs.HistogramDefs)+1)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per le bound."))
		if err != nil {
			return nil, fmt.Errorf("create histogram bucket gauge %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", def.Name, err)
		}
		exporter.histograms = append(exporter.histograms, observedHistogram{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		for i, opt := range e.bucketAttrs {
			observer.ObserveInt64(h.buckets, int64(cumulative[i]), opt)
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

func bucketAttributes() []metric.ObserveOption {
	out := make([]metric.ObserveOption, 0, len(internaldefs.HistogramUpperBounds)+1)
	for _, bound := range internaldefs.HistogramUpperBounds {
		le := strconv.FormatFloat(bound, 'g', -1, 64)
		out = append(out, metric.WithAttributes(attribute.String("le", le)))
	}
	return append(out, metric.WithAttributes(attribute.String("le", "+Inf")))
}
