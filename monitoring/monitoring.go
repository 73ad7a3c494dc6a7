// Package monitoring installs the Cloud Trace, Cloud Monitoring and Cloud
// Profiler integrations shared by the kurudhi binaries.
package monitoring

import (
	"flag"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/profiler"
	"contrib.go.opencensus.io/exporter/stackdriver"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Flags struct {
	Enabled         bool
	Project         string
	TraceRatio      float64
	EnableProfiling bool
}

func (f *Flags) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&f.Enabled, "monitoring", false, "Enable monitoring?")
	fs.StringVar(&f.Project, "monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	fs.Float64Var(&f.TraceRatio, "monitoring-trace-ratio", 0.01, "What ratio of traces should be exported?")
	fs.BoolVar(&f.EnableProfiling, "enable-profiling", false, "Enable Cloud Profiler?")
}

func (f *Flags) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("monitoring", f.Enabled),
		slog.String("monitoring-project", f.Project),
		slog.Float64("monitoring-trace-ratio", f.TraceRatio),
		slog.Bool("enable-profiling", f.EnableProfiling),
	)
}

// Setup starts whatever f enables.  The returned function flushes and stops
// the exporters.
func Setup(f *Flags, service string) (func(), error) {
	shutdown := func() {}

	// Cloud Profiler initialization, best done as early as possible.
	if f.EnableProfiling {
		if err := profiler.Start(profiler.Config{
			Service:   service,
			ProjectID: f.Project,
		}); err != nil {
			return nil, fmt.Errorf("while initializing profiler: %w", err)
		}
	}

	if !f.Enabled {
		return shutdown, nil
	}

	traceOpts := []cloudtrace.Option{}
	if f.Project != "" {
		traceOpts = append(traceOpts, cloudtrace.WithProjectID(f.Project))
	}
	_, traceShutdown, err := cloudtrace.InstallNewPipeline(traceOpts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(f.TraceRatio)))
	if err != nil {
		return nil, fmt.Errorf("while installing Cloud Trace OpenTelemetry trace pipeline: %w", err)
	}

	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:         f.Project,
		MetricPrefix:      service,
		ReportingInterval: 60 * time.Second,
	})
	if err != nil {
		traceShutdown()
		return nil, fmt.Errorf("while initializing metrics exporter: %w", err)
	}
	if err := exporter.StartMetricsExporter(); err != nil {
		traceShutdown()
		return nil, fmt.Errorf("while starting metrics exporter: %w", err)
	}

	return func() {
		exporter.Flush()
		exporter.StopMetricsExporter()
		traceShutdown()
	}, nil
}
