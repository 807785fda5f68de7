package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/ericfisherdev/leadenrich"

// Telemetry owns the meter provider for the process.
type Telemetry struct {
	Metrics *Metrics

	// Handler serves the Prometheus scrape endpoint. It is nil unless the
	// prometheus exporter is selected.
	Handler http.Handler

	provider *sdkmetric.MeterProvider
}

// Setup builds a meter provider for the named exporter.
// Supported exporters: prometheus, stdout, none.
func Setup(exporter string) (*Telemetry, error) {
	var (
		reader  sdkmetric.Reader
		handler http.Handler
	)

	switch exporter {
	case "prometheus":
		registry := promclient.NewRegistry()
		exp, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		reader = exp
		handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, fmt.Errorf("create stdout metrics exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)

	case "none", "":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return nil, fmt.Errorf("create discard metrics exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)

	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", exporter)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(provider.Meter(meterName))
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("create instruments: %w", err)
	}

	return &Telemetry{Metrics: metrics, Handler: handler, provider: provider}, nil
}

// Shutdown flushes pending metrics and stops the readers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
