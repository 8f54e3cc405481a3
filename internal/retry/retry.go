// Package retry runs step operations with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"
)

// Operation is a single attempt.
type Operation func(ctx context.Context) error

// Config describes the retry policy for one step.
type Config struct {
	Attempts      int
	Delay         time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64
	StepName      string
}

// Helper executes operations under a Config. It is safe for concurrent use.
type Helper struct {
	log lglog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewHelper(log lglog.Logger) *Helper {
	if log == nil {
		panic("retry.NewHelper requires a non-nil logger")
	}
	return &Helper{
		log: log,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do runs op until it succeeds, attempts run out, or ctx is done.
// An interrupted task is never retried.
func (h *Helper) Do(ctx context.Context, cfg Config, op Operation) error {
	cfg = normalize(cfg)

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return contextError(ctx)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				h.log.Infof("step=%s succeeded on attempt %d/%d", cfg.StepName, attempt, cfg.Attempts)
			}
			return nil
		}
		if _, interrupted := lgerrors.IsInterrupted(lastErr); interrupted || attempt == cfg.Attempts {
			break
		}

		wait := h.backoff(cfg, attempt)
		h.log.Warnf("step=%s failed on attempt %d/%d (retrying in %v): %v",
			cfg.StepName, attempt, cfg.Attempts, wait.Truncate(time.Millisecond), lastErr)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}
	}
	return lastErr
}

func (h *Helper) backoff(cfg Config, attempt int) time.Duration {
	base := float64(cfg.Delay) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	if base > float64(math.MaxInt64) {
		base = float64(math.MaxInt64)
	}
	wait := time.Duration(base)

	if cfg.Jitter > 0 {
		h.mu.Lock()
		f := cfg.Jitter * (h.rnd.Float64()*2.0 - 1.0)
		h.mu.Unlock()
		wait += time.Duration(float64(wait) * f)
		if wait < 0 {
			wait = 0
		}
	}
	if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
		wait = cfg.MaxDelay
	}
	return wait
}

func normalize(cfg Config) Config {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.BackoffFactor < 1.0 {
		cfg.BackoffFactor = 1.0
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	} else if cfg.Jitter > 1 {
		cfg.Jitter = 1
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.MaxDelay < 0 {
		cfg.MaxDelay = 0
	}
	return cfg
}

// contextError prefers the cancellation cause so an interrupt surfaces as
// an InterruptedError rather than context.Canceled.
func contextError(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, ctx.Err()) {
		return cause
	}
	return ctx.Err()
}
