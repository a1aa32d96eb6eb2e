// Package telemetry is the internal event sink for tool and server events.
// Emission is rate-limited and never blocks a tool call: over-limit events
// are dropped with a debug log. Events always fan out to slog; when an OTLP
// endpoint is configured they are additionally exported as trace spans.
package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/bctelemetry/bctb/internal/config"
)

// Event names delivered to the sink.
const (
	EventToolCompleted = "ToolCompleted"
	EventToolFailed    = "ToolFailed"
	EventServerStarted = "ServerStarted"
	EventError         = "Error"
)

const (
	defaultEventsPerSec = 10
	defaultBurst        = 20
)

// Event is one sink delivery. ProfileHash identifies the active profile
// without leaking its name.
type Event struct {
	Name        string
	Tool        string
	DurationMs  int64
	ProfileHash string
	Error       string
}

// Sink rate-limits and fans out events. The zero value and nil are inert,
// so callers never need to guard emission.
type Sink struct {
	enabled  bool
	limiter  *rate.Limiter
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// NewSink builds the sink from config. OTLP export is attached only when
// an endpoint is configured; exporter construction failure degrades to
// log-only with a warning.
func NewSink(cfg config.TelemetryConfig) *Sink {
	if !cfg.IsEnabled() {
		return &Sink{}
	}
	perSec := cfg.EventsPerSec
	if perSec <= 0 {
		perSec = defaultEventsPerSec
	}
	s := &Sink{
		enabled: true,
		limiter: rate.NewLimiter(rate.Limit(perSec), defaultBurst),
	}
	if cfg.OTLPEndpoint != "" {
		tracer, shutdown, err := newOTLPTracer(cfg)
		if err != nil {
			slog.Warn("telemetry: OTLP exporter unavailable, events go to log only", "error", err)
		} else {
			s.tracer = tracer
			s.shutdown = shutdown
		}
	}
	return s
}

// ProfileHash is the 16-character truncated SHA-256 of a profile name.
func ProfileHash(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])[:16]
}

// Emit delivers one event. Non-blocking: over-limit events are dropped.
func (s *Sink) Emit(ctx context.Context, ev Event) {
	if s == nil || !s.enabled {
		return
	}
	if !s.limiter.Allow() {
		slog.Debug("telemetry event dropped (rate limit)", "event", ev.Name)
		return
	}

	slog.Debug("telemetry event",
		"event", ev.Name,
		"tool", ev.Tool,
		"duration_ms", ev.DurationMs,
		"profile_hash", ev.ProfileHash)

	if s.tracer != nil {
		_, span := s.tracer.Start(ctx, ev.Name)
		span.SetAttributes(
			attribute.String("bctb.event", ev.Name),
			attribute.String("bctb.tool", ev.Tool),
			attribute.Int64("bctb.duration_ms", ev.DurationMs),
			attribute.String("bctb.profile_hash", ev.ProfileHash),
		)
		if ev.Error != "" {
			span.SetAttributes(attribute.String("bctb.error", ev.Error))
		}
		span.End()
	}
}

// EmitException records a failure alongside its ToolFailed event.
func (s *Sink) EmitException(ctx context.Context, profileHash string, err error) {
	if s == nil || !s.enabled || err == nil {
		return
	}
	s.Emit(ctx, Event{Name: EventError, ProfileHash: profileHash, Error: err.Error()})
}

// Close flushes the OTLP exporter when one is attached.
func (s *Sink) Close(ctx context.Context) error {
	if s == nil || s.shutdown == nil {
		return nil
	}
	return s.shutdown(ctx)
}
