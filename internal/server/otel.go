package server

import (
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// newMeterProvider returns an SDK MeterProvider that writes every
// collection to w as JSON. A zero interval keeps the SDK default of 60s.
// Shutdown performs a final collection.
func newMeterProvider(w io.Writer, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create otel metric exporter: %w", err)
	}

	var opts []sdkmetric.PeriodicReaderOption
	if interval > 0 {
		opts = append(opts, sdkmetric.WithInterval(interval))
	}
	reader := sdkmetric.NewPeriodicReader(exporter, opts...)
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), nil
}
