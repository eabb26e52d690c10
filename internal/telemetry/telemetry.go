package telemetry

import (
	"context"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Mode selects how much tracing the service emits.
type Mode string

const (
	// ModeOff disables tracing entirely.
	ModeOff Mode = "off"
	// ModeErrors keeps a small sample so failed requests stay visible.
	ModeErrors Mode = "errors"
	// ModeSampled traces a configurable fraction of requests.
	ModeSampled Mode = "sampled"
	// ModeDetailed traces everything, including upstream API calls.
	ModeDetailed Mode = "detailed"
)

// globalMode is read on every traced request, so handlers never touch the
// config after startup.
var globalMode atomic.Value

// Config configures OpenTelemetry tracing setup.
type Config struct {
	Enabled          bool
	ServiceName      string
	TraceMode        string
	TraceSampleRatio float64
}

// Runtime contains initialized telemetry providers and lifecycle hooks.
type Runtime struct {
	TracerProvider *sdktrace.TracerProvider
	Shutdown       func(ctx context.Context) error
}

// Setup initializes global tracing. Disabled telemetry still installs a
// provider so tracer lookups stay valid; it just never samples.
func Setup(cfg Config) (Runtime, error) {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "open-cookie"
	}

	mode := parseMode(cfg.TraceMode)
	if !cfg.Enabled {
		mode = ModeOff
	}
	globalMode.Store(mode)

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return Runtime{}, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(mode.sampler(cfg.TraceSampleRatio)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return Runtime{
		TracerProvider: provider,
		Shutdown:       provider.Shutdown,
	}, nil
}

// TraceMode reports the configured global trace mode.
func TraceMode() string {
	mode, ok := globalMode.Load().(Mode)
	if !ok {
		return string(ModeOff)
	}
	return string(mode)
}

// ShouldTraceDependencies reports if upstream API spans should be emitted.
func ShouldTraceDependencies() bool {
	return TraceMode() == string(ModeDetailed)
}

// parseMode normalizes a config string; unknown values fall back to
// sampled rather than silently disabling tracing.
func parseMode(raw string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeOff:
		return ModeOff
	case ModeErrors:
		return ModeErrors
	case ModeDetailed:
		return ModeDetailed
	default:
		return ModeSampled
	}
}

func (m Mode) sampler(ratio float64) sdktrace.Sampler {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	switch m {
	case ModeOff:
		return sdktrace.NeverSample()
	case ModeDetailed:
		return sdktrace.AlwaysSample()
	case ModeErrors:
		if ratio <= 0 {
			ratio = 0.01
		}
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
