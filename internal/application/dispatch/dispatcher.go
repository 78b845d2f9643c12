// Package dispatch routes validated generic CRUD requests to the atomic store.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hera/backend/internal/domain/guardrail"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/domain/universal"
	"github.com/hera/backend/internal/infrastructure/logger"
	"github.com/hera/backend/internal/infrastructure/telemetry"
)

// ActorGuard enforces the actor requirements before any store access
type ActorGuard interface {
	Require(ctx context.Context, fn string, actorID, organizationID *uuid.UUID) error
}

// Dispatcher runs every request through the actor guard, the organization
// scope check, smart-code validation and, for transactions, GL balance
// validation before calling the store. No stage proceeds on partial success.
type Dispatcher struct {
	store    universal.AtomicStore
	guard    ActorGuard
	policy   *guardrail.Policy
	codes    *guardrail.SmartCodeValidator
	gl       *guardrail.GLBalanceValidator
	scope    *guardrail.OrgScopeEnforcer
	recorder Recorder
	now      func() time.Time
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithRecorder reports outcomes and rejections to r
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithClock overrides the clock used for default transaction dates
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a dispatcher over store. The policy is shared
// read-only by every validator.
func NewDispatcher(store universal.AtomicStore, guard ActorGuard, policy *guardrail.Policy, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		guard:    guard,
		policy:   policy,
		codes:    guardrail.NewSmartCodeValidator(policy),
		gl:       guardrail.NewGLBalanceValidator(policy),
		scope:    guardrail.NewOrgScopeEnforcer(policy),
		recorder: nopRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// admit runs the stages shared by every request and returns the resolved
// organization and actor ids
func (d *Dispatcher) admit(ctx context.Context, family Family, op Operation, caller Caller, header string, nested []string) (uuid.UUID, uuid.UUID, error) {
	if !op.IsValid() {
		return uuid.Nil, uuid.Nil, ErrUnsupportedOperation.WithDetail("operation", string(op))
	}
	fn := string(family) + "." + string(op)
	if err := d.guard.Require(ctx, fn, caller.ActorID, caller.OrganizationID); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	orgID, actorID := *caller.OrganizationID, *caller.ActorID
	if err := d.scope.EnforceAll(orgID, header, nested...); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return orgID, actorID, nil
}

// observe reports the outcome of one dispatch and logs guardrail rejections
func (d *Dispatcher) observe(ctx context.Context, span trace.Span, family Family, op Operation, caller Caller, err error) {
	telemetry.SetAttributes(span,
		"organization_id", idString(caller.OrganizationID),
		"actor_id", idString(caller.ActorID))
	if err == nil {
		d.recorder.Dispatch(family, op, OutcomeOK)
		return
	}
	telemetry.RecordError(span, err)
	var de *shared.DomainError
	if !errors.As(err, &de) || de.Category == shared.CategoryStore || de.Category == shared.CategoryInternal {
		d.recorder.Dispatch(family, op, OutcomeError)
		logger.L(ctx).Error("Dispatch failed",
			zap.String("family", string(family)),
			zap.String("operation", string(op)),
			zap.Error(err))
		return
	}
	d.recorder.Dispatch(family, op, OutcomeRejected)
	if de.Category == shared.CategoryGuardrail {
		d.recorder.Rejection(de.Code)
		logger.L(ctx).Warn("Guardrail rejected request",
			zap.String("code", de.Code),
			zap.String("function", string(family)+"."+string(op)),
			zap.String("actor_id", idString(caller.ActorID)),
			zap.String("organization_id", idString(caller.OrganizationID)))
	}
}

// validateCode checks a smart code and tags a rejection with where it came from
func (d *Dispatcher) validateCode(code, location string) error {
	if err := d.codes.Validate(code); err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			return de.WithDetail("location", location)
		}
		return err
	}
	return nil
}

// validateHeader checks a header smart code against the family configured
// for its entity or transaction type
func (d *Dispatcher) validateHeader(code, kind, location string) error {
	if err := d.codes.ValidateFamily(code, d.policy.RequiredFamily(kind)); err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			return de.WithDetail("location", location)
		}
		return err
	}
	return nil
}

// storeError passes store failures through verbatim. Domain errors raised by
// the store, like NOT_FOUND, keep their category.
func storeError(err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.NewStoreError(err)
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
