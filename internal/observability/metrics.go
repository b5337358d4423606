package observability

import (
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

var (
	// TelemetrySystem receives every metric the uploader emits. Nil means
	// metrics are off and recorders become no-ops.
	TelemetrySystem *telemetry.System

	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// DefaultMetricsPort is reported when the exporter address cannot be parsed
// after binding to an ephemeral port.
const DefaultMetricsPort = 9090

// InitMetrics starts the Prometheus exporter on port (0 picks a free one)
// and installs a telemetry system feeding it. Metric names are prefixed with
// namespace when given, otherwise with serviceName.
func InitMetrics(serviceName string, port int, namespace ...string) error {
	if port < 0 {
		port = 0
	}
	prefix := serviceName
	if len(namespace) > 0 && namespace[0] != "" {
		prefix = namespace[0]
	}

	exporter := exporters.NewPrometheusExporter(prefix, net.JoinHostPort("", strconv.Itoa(port)))
	if err := exporter.Start(); err != nil {
		return err
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		_ = exporter.Stop()
		return err
	}

	metricsPort = port
	if bound, perr := resolvePort(exporter.GetAddr()); perr == nil {
		metricsPort = bound
	} else if port == 0 {
		metricsPort = DefaultMetricsPort
	}
	PrometheusExporter = exporter
	TelemetrySystem = sys
	return nil
}

// ShutdownMetrics stops the exporter and turns recorders back into no-ops.
func ShutdownMetrics() error {
	exporter := PrometheusExporter
	PrometheusExporter = nil
	TelemetrySystem = nil
	if exporter == nil {
		return nil
	}
	return exporter.Stop()
}

// GetMetricsPort is the port the exporter actually bound.
func GetMetricsPort() int {
	return metricsPort
}

func resolvePort(addr string) (int, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(port)
}
