package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/arell305/hostlyapp/internal/domain/promo"

// Validator validates a promo code for a scope.
type Validator interface {
	Validate(ctx context.Context, code string, scope Scope) (*Validation, error)
}

// Option configures a RepoValidator.
type Option func(*RepoValidator)

// WithTracerProvider sets the tracer provider. The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(v *RepoValidator) {
		v.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets the meter provider. The global provider is used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(v *RepoValidator) {
		v.meter = mp.Meter(instrumentationName)
	}
}

// RepoValidator implements Validator by looking up rules from a Repository
// and checking them with Check.
type RepoValidator struct {
	repo Repository
	now  func() time.Time

	tracer      trace.Tracer
	meter       metric.Meter
	validations metric.Int64Counter
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository, opts ...Option) (*RepoValidator, error) {
	v := &RepoValidator{
		repo:   repo,
		now:    time.Now,
		tracer: otel.GetTracerProvider().Tracer(instrumentationName),
		meter:  otel.GetMeterProvider().Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(v)
	}

	var err error
	v.validations, err = v.meter.Int64Counter("hostly.promo.validations",
		metric.WithDescription("Promo code validations by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create validations counter")
	}
	return v, nil
}

// Validate looks up the rule for the code and checks its state, time window,
// usage limit and scope. It does not consume a use.
func (v *RepoValidator) Validate(ctx context.Context, code string, scope Scope) (_ *Validation, rerr error) {
	ctx, span := v.tracer.Start(ctx, "promo.Validate",
		trace.WithAttributes(
			attribute.String("hostly.organization_id", scope.OrganizationID),
			attribute.String("hostly.event_id", scope.EventID),
		),
	)
	defer func() {
		outcome := outcomeOf(rerr)
		if rerr != nil && outcome == "error" {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		v.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.End()
	}()

	code = Normalize(code)
	if code == "" {
		return nil, ErrEmptyCode
	}

	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrUnknownCode) {
			return nil, ErrUnknownCode
		}
		return nil, errors.Wrap(err, "lookup promo code")
	}

	if err := Check(rule, scope, v.now()); err != nil {
		return nil, err
	}

	return &Validation{
		IsValid:         true,
		DiscountPercent: rule.DiscountPercent,
		Code:            rule.Code,
	}, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, ErrEmptyCode), errors.Is(err, ErrUnknownCode):
		return "unknown"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrUsageLimitReached):
		return "exhausted"
	case errors.Is(err, ErrNotApplicable):
		return "not_applicable"
	default:
		return "error"
	}
}
