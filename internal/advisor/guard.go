package advisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Guarded wraps an Advisor with a per-call timeout, an optional rate
// limit and logging. Errors from the wrapped advisor that do not already
// wrap ErrAdvisor are wrapped here.
type Guarded struct {
	next    Advisor
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGuarded wraps next. requestsPerMinute <= 0 disables rate limiting and
// timeout <= 0 disables the deadline.
func NewGuarded(next Advisor, timeout time.Duration, requestsPerMinute int, logger *zap.Logger) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guarded{next: next, timeout: timeout, logger: logger}
	if requestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	return g
}

// Advise forwards req once; there is no retry.
func (g *Guarded) Advise(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limit: %v", ErrAdvisor, err)
		}
	}

	start := time.Now()
	reply, err := g.next.Advise(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		g.logger.Warn("advisor request failed",
			zap.Stringer("kind", req.Kind),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", err, context.DeadlineExceeded)
		}
		if !errors.Is(err, ErrAdvisor) {
			err = fmt.Errorf("%w: %w", ErrAdvisor, err)
		}
		return "", err
	}

	g.logger.Debug("advisor replied",
		zap.Stringer("kind", req.Kind),
		zap.Int("reply_len", len(reply)),
		zap.Duration("elapsed", elapsed))
	return reply, nil
}

// New builds the configured provider wrapped in Guarded.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Advisor, error) {
	httpClient := &http.Client{}

	var (
		next Advisor
		err  error
	)
	switch cfg.Provider {
	case ProviderOpenAI, "":
		next, err = NewOpenAIAdvisor(cfg, httpClient)
	case ProviderGemini:
		next, err = NewGeminiAdvisor(ctx, cfg, httpClient)
	case ProviderOllama:
		next, err = NewOllamaAdvisor(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unknown advisor provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewGuarded(next, cfg.Timeout, cfg.RequestsPerMinute, logger), nil
}
