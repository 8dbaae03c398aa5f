package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/teamfines/platform/internal/guard"
)

// ErrCircuitOpen is returned instead of publishing while the broker circuit is open.
var ErrCircuitOpen = errors.New("publisher circuit open")

const brokerKey = "broker"

// BreakerPublisher stops calling the broker after repeated failures so a dead
// cluster does not turn every poll into a full timeout.
type BreakerPublisher struct {
	next    Publisher
	breaker *guard.CircuitBreaker
}

// WithBreaker wraps next with cb.
func WithBreaker(next Publisher, cb *guard.CircuitBreaker) *BreakerPublisher {
	return &BreakerPublisher{next: next, breaker: cb}
}

func (p *BreakerPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	if d := p.breaker.Check(brokerKey); !d.Allowed {
		return fmt.Errorf("%w: retry in %s", ErrCircuitOpen, d.RetryAfter)
	}
	if err := p.next.Publish(ctx, topic, key, value); err != nil {
		p.breaker.RecordFailure(brokerKey)
		return err
	}
	p.breaker.RecordSuccess(brokerKey)
	return nil
}
