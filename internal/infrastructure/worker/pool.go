// Package worker provides the bounded worker pool that the flux-based checks
// fan their independent LP experiments out over: per-metabolite experiments
// for the dilution test, per-reaction optimizations for the loop test and
// FVA.  Each item runs under its own timeout with bounded retries; on
// cancellation the pool stops handing out work within one item quantum.
package worker

import (
	"context"
	stdliberrors "errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/logging"
)

// Status is the outcome classification of a single work item.
type Status int

const (
	StatusSuccess   Status = iota // the item completed
	StatusFailed                  // the item failed with a non-retryable error
	StatusTimeout                 // every attempt exceeded its timeout
	StatusCancelled               // the run was cancelled before the item finished
)

// String returns the human-readable representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailed:
		return "FAILED"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Func processes a single item.  attempt is 1-based so implementations can
// log retries distinctly.
type Func[T, R any] func(ctx context.Context, item T, attempt int) (R, error)

// Result holds the outcome of one item.
type Result[R any] struct {
	Index    int
	Value    R
	Err      error
	Status   Status
	Attempts int
}

// Options tunes a Run call.
type Options struct {
	// Concurrency caps the number of items in flight.  Defaults to
	// runtime.NumCPU() when zero or negative.
	Concurrency int

	// ItemTimeout is the per-attempt deadline.  Zero disables the timeout.
	ItemTimeout time.Duration

	// MaxAttempts caps attempts per item; defaults to 1.
	MaxAttempts int

	// EscalateTimeout multiplies ItemTimeout by the attempt number, the way
	// the FVA watchdog stretches its budget for stubborn reactions.
	EscalateTimeout bool

	// RetryIf decides whether a failed attempt should be retried.  Defaults
	// to retrying deadline-exceeded errors only.
	RetryIf func(error) bool

	// Logger receives per-retry detail at Debug.  Defaults to the nop logger.
	Logger logging.Logger
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.NumCPU()
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	if o.RetryIf == nil {
		o.RetryIf = func(err error) bool {
			return stdliberrors.Is(err, context.DeadlineExceeded)
		}
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}
	return o
}

// Run processes every item through fn, respecting the concurrency cap,
// per-attempt timeouts and the retry policy.  Results come back ordered by
// item index.  Run itself only returns an error when ctx is cancelled; all
// per-item failures are reported in the Result slice so callers can apply
// their own conservative-flagging policy.
func Run[T, R any](ctx context.Context, items []T, fn Func[T, R], opts Options) ([]Result[R], error) {
	opts = opts.withDefaults()
	n := len(items)
	if n == 0 {
		return nil, nil
	}

	results := make([]Result[R], n)
	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int, item T) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = Result[R]{Index: idx, Err: ctx.Err(), Status: StatusCancelled}
				return
			}

			results[idx] = runOne(ctx, idx, item, fn, opts)
		}(i, items[i])
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// runOne drives the attempt loop for a single item.
func runOne[T, R any](ctx context.Context, idx int, item T, fn Func[T, R], opts Options) Result[R] {
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		attempts = attempt
		attemptCtx := ctx
		var cancel context.CancelFunc
		if opts.ItemTimeout > 0 {
			timeout := opts.ItemTimeout
			if opts.EscalateTimeout {
				timeout *= time.Duration(attempt)
			}
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		value, err := fn(attemptCtx, item, attempt)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return Result[R]{Index: idx, Value: value, Status: StatusSuccess, Attempts: attempt}
		}
		lastErr = err

		// A cancelled run is not a per-item failure.
		if ctx.Err() != nil {
			return Result[R]{Index: idx, Err: ctx.Err(), Status: StatusCancelled, Attempts: attempt}
		}

		if attempt < opts.MaxAttempts && opts.RetryIf(err) {
			opts.Logger.Debug("retrying work item",
				logging.Int("index", idx),
				logging.Int("attempt", attempt),
				logging.Err(err))
			continue
		}
		break
	}

	status := StatusFailed
	if stdliberrors.Is(lastErr, context.DeadlineExceeded) {
		status = StatusTimeout
	}
	return Result[R]{Index: idx, Err: lastErr, Status: status, Attempts: attempts}
}
