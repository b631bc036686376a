package tokenprovider

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/credkit/pkg/constants"
	"github.com/turtacn/credkit/pkg/errors"
	"github.com/turtacn/credkit/pkg/jwt"
	"github.com/turtacn/credkit/pkg/logger"
)

const (
	tracerName = "github.com/turtacn/credkit/pkg/tokenprovider"
	renewalKey = "renew"
)

// Metrics receives cache and renewal events. monitoring.Metrics implements it.
type Metrics interface {
	RecordTokenCache(hit bool)
	RecordTokenRenewal(success bool, duration time.Duration)
}

// Option configures a CachingTokenProvider.
type Option func(*CachingTokenProvider)

// WithInitialToken pre-populates the cache so the first call can skip renewal.
func WithInitialToken(token TokenOrString) Option {
	return func(p *CachingTokenProvider) { p.initial = token }
}

// WithMargin sets how long before expiry a cached token stops being handed out.
func WithMargin(margin time.Duration) Option {
	return func(p *CachingTokenProvider) { p.margin = margin }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *CachingTokenProvider) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *CachingTokenProvider) { p.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(p *CachingTokenProvider) { p.metrics = m }
}

// CachingTokenProvider caches the last token obtained from a RenewFunc.
//
// At most one call to the RenewFunc is outstanding at any time. Callers that
// arrive while a renewal is running wait for it and receive its result, success
// or failure. Nothing is retried.
type CachingTokenProvider struct {
	renew   RenewFunc
	margin  time.Duration
	now     func() time.Time
	log     logger.Logger
	metrics Metrics
	tracer  trace.Tracer
	initial TokenOrString

	mu     sync.RWMutex
	cached *jwt.Token

	inflight singleflight.Group
}

// NewCachingTokenProvider creates a provider around renew.
func NewCachingTokenProvider(renew RenewFunc, opts ...Option) (*CachingTokenProvider, error) {
	if renew == nil {
		return nil, errors.ErrValidation("renew")
	}
	p := &CachingTokenProvider{
		renew:  renew,
		margin: constants.TokenExpirationMargin,
		now:    time.Now,
		log:    logger.NewNoopLogger(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.Component(p.log, "token_provider")

	if !p.initial.IsZero() {
		tok, err := p.initial.Coerce()
		if err != nil {
			return nil, err
		}
		p.cached = tok
	}
	return p, nil
}

// GetToken returns the cached token while it is valid for at least the margin,
// and otherwise joins (or starts) the single renewal in flight.
//
// The renewal itself is not bound to ctx: if ctx is done the caller stops
// waiting, but the renewal keeps running for the other waiters.
func (p *CachingTokenProvider) GetToken(ctx context.Context, tokenCtx TokenContext) (*jwt.Token, error) {
	if !tokenCtx.ForceReload {
		if tok := p.fresh(); tok != nil {
			p.recordCache(true)
			return tok, nil
		}
	}
	p.recordCache(false)

	renewCtx := context.WithoutCancel(ctx)
	ch := p.inflight.DoChan(renewalKey, func() (interface{}, error) {
		if !tokenCtx.ForceReload {
			// A renewal may have finished between the check above and joining the group.
			if tok := p.fresh(); tok != nil {
				return tok, nil
			}
		}
		return p.renewToken(renewCtx, tokenCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*jwt.Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cached returns the most recently obtained token, which may be expired.
func (p *CachingTokenProvider) Cached() *jwt.Token {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cached
}

func (p *CachingTokenProvider) fresh() *jwt.Token {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cached == nil || p.cached.IsExpired(p.now().Add(p.margin)) {
		return nil
	}
	return p.cached
}

func (p *CachingTokenProvider) renewToken(ctx context.Context, tokenCtx TokenContext) (*jwt.Token, error) {
	ctx, span := p.tracer.Start(ctx, "tokenprovider.renew", trace.WithAttributes(
		attribute.String("credkit.service", tokenCtx.Service),
		attribute.String("credkit.operation", tokenCtx.Operation),
		attribute.Bool("credkit.force_reload", tokenCtx.ForceReload),
	))
	defer span.End()

	start := time.Now()
	tok, err := p.callRenew(ctx, tokenCtx)
	p.recordRenewal(err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token renewal failed")
		p.log.Error(ctx, "Token renewal failed", err, logger.Fields{
			"service":   tokenCtx.Service,
			"operation": tokenCtx.Operation,
		})
		return nil, err
	}

	p.mu.Lock()
	p.cached = tok
	p.mu.Unlock()

	p.log.Debug(ctx, "Token renewed", logger.Fields{
		"expires_at": tok.ExpiresAt().UTC(),
		"duration":   time.Since(start).String(),
	})
	return tok, nil
}

func (p *CachingTokenProvider) callRenew(ctx context.Context, tokenCtx TokenContext) (*jwt.Token, error) {
	v, err := p.renew(ctx, tokenCtx)
	if err != nil {
		if tok, ok := tokenFromFailure(err); ok {
			p.log.Warn(ctx, "Renewal reported a token through its error value; accepting it")
			return tok, nil
		}
		return nil, err
	}
	return v.Coerce()
}

func (p *CachingTokenProvider) recordCache(hit bool) {
	if p.metrics != nil {
		p.metrics.RecordTokenCache(hit)
	}
}

func (p *CachingTokenProvider) recordRenewal(success bool, d time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordTokenRenewal(success, d)
	}
}

var _ AccessTokenProvider = (*CachingTokenProvider)(nil)
