package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/teamfines/platform/internal/domain"
	"github.com/teamfines/platform/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/teamfines/platform/internal/service")

// Deps is shared by all services.
type Deps struct {
	DB      repository.TxBeginner
	Logger  *slog.Logger
	Metrics *Metrics
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// inTx runs fn in one transaction. Commit happens only if fn succeeds; any
// failure that is not already an AppError becomes a PersistenceError.
func inTx(ctx context.Context, db repository.TxBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return domain.ErrPersistence("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return asDomainError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ErrPersistence("commit transaction", err)
	}
	return nil
}

func asDomainError(err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := domain.AsAppError(err); ok {
		return appErr
	}
	return domain.ErrPersistence("store operation failed", err)
}

// startSpan opens a span for operation and returns a finish func that records
// the outcome on the span, the metrics and, for persistence failures, the log.
func startSpan(ctx context.Context, d Deps, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		defer span.End()
		d.Metrics.ObserveDuration(operation, time.Since(start))
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return
		}
		code := domain.ErrorCode(err)
		d.Metrics.IncError(operation, code)
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		if code == domain.CodePersistence {
			d.Logger.Error("operation failed", "operation", operation, "error", err)
		}
	}
}

func orgAttr(actor domain.Actor) attribute.KeyValue {
	return attribute.String("organization_id", actor.OrganizationID)
}
