package vision

import (
	"context"
	"log/slog"

	"intake/pkg/platform/circuit"
)

// Guarded fails fast while the provider is unhealthy.
type Guarded struct {
	next    Analyzer
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewGuarded wraps next with breaker.
func NewGuarded(next Analyzer, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{next: next, breaker: breaker, logger: logger}
}

func (g *Guarded) Analyze(ctx context.Context, src Source, features Features) (*Annotation, error) {
	if !g.breaker.Allow() {
		return nil, NewError(ErrorCircuitOpen, g.breaker.Name(), "provider circuit open", nil)
	}
	annotation, err := g.next.Analyze(ctx, src, features)
	if err != nil {
		if countsAsOutage(err) {
			if _, change := g.breaker.RecordFailure(); change.Opened {
				g.logger.WarnContext(ctx, "vision circuit opened",
					"breaker", g.breaker.Name(),
					"error", err,
				)
			}
		}
		return nil, err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "vision circuit closed", "breaker", g.breaker.Name())
	}
	return annotation, nil
}
