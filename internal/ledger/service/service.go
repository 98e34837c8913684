// Package service implements the ledger's validated state transitions.
//
// Each operation runs inside one store transaction: preconditions are checked
// and records mutated under the same commit, so a failed validation leaves no
// partial state and the global counters never observe a capsule
// mid-transition. The signer and the ledger time both come from the request
// context, placed there by middleware and overridable in tests.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"timevault/internal/ledger/events"
	"timevault/internal/ledger/metrics"
	"timevault/internal/ledger/store"
	"timevault/pkg/domain"
	dErrors "timevault/pkg/domain-errors"
	"timevault/pkg/platform/sentinel"
	"timevault/pkg/requestcontext"
)

// Service orchestrates capsule lifecycle operations over a Store.
type Service struct {
	store     store.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New builds a Service. Publisher defaults to a no-op and the logger to the
// process default.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: events.NoopPublisher{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("timevault/internal/ledger/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// signer returns the authenticated signer or an error when none is present.
func signer(ctx context.Context) (domain.Address, error) {
	s := requestcontext.Signer(ctx)
	if s.IsZero() {
		return domain.Address{}, dErrors.New(dErrors.CodeUnauthorized, "no authenticated signer")
	}
	return s, nil
}

// assertSigner rejects a signer that does not match the stored authority.
func assertSigner(expected, actual domain.Address) error {
	if expected != actual {
		return dErrors.New(dErrors.CodeUnauthorized, "signer does not match record authority")
	}
	return nil
}

// emit publishes a lifecycle event after its transaction has committed.
// Publishing is observability only; failures are logged and swallowed.
func (s *Service) emit(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("lifecycle event dropped",
			"type", string(event.Type), "error", err)
	}
}

// translateStoreErr maps infrastructure sentinels onto coded domain errors.
func translateStoreErr(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "record already exists at derived address")
	default:
		return err
	}
}

func (s *Service) span(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}
