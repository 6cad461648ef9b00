package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"bank-terminal-go/internal/challenge"
	"bank-terminal-go/internal/models"

	"golang.org/x/time/rate"
)

var ErrThrottled = errors.New("delivery throttled")

// Throttled limits how often one destination can receive codes.
type Throttled struct {
	next     challenge.Dispatcher
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottled allows perMinute deliveries per destination with the given burst.
func NewThrottled(next challenge.Dispatcher, perMinute, burst int) *Throttled {
	return &Throttled{
		next:     next,
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (t *Throttled) Dispatch(ctx context.Context, d models.ChallengeDelivery) error {
	if !t.limiter(d.Destination).Allow() {
		return ErrThrottled
	}
	return t.next.Dispatch(ctx, d)
}

func (t *Throttled) limiter(dest string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.limiters[dest]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[dest] = l
	}
	return l
}
