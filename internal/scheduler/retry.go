package scheduler

import (
	"context"
	"time"

	"github.com/phuslu/log"

	"github.com/spider-crawler/sitecrawl/internal/logging"
	"github.com/spider-crawler/sitecrawl/internal/model"
	"github.com/spider-crawler/sitecrawl/internal/renderer"
)

// State is the lifecycle state of one URL's attempts.
type State int

const (
	StatePending State = iota
	StateRendering
	StateRetryPending
	StateSuccess
	StatePermanentFailure
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRendering:
		return "rendering"
	case StateRetryPending:
		return "retry_pending"
	case StateSuccess:
		return "success"
	case StatePermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// Attempt is the retry record for one URL within a run.
type Attempt struct {
	URL      string
	Attempts int
	State    State

	// Last page error, if any attempt failed
	LastErr error
}

// RenderFunc renders one URL.
type RenderFunc func(ctx context.Context, url string) (*model.PageRecord, error)

// Outcome is the result of driving a URL to a terminal state.
type Outcome struct {
	Record  *model.PageRecord
	Attempt Attempt
}

// Succeeded reports whether the URL rendered.
func (o Outcome) Succeeded() bool {
	return o.Attempt.State == StateSuccess
}

// Retrier re-renders a URL after page errors, waiting a fixed interval
// between attempts.
type Retrier struct {
	interval time.Duration
	sleep    SleepFunc
	logger   *log.Logger
}

// NewRetrier creates a retrier.
func NewRetrier(interval time.Duration, sleep SleepFunc, logger *log.Logger) *Retrier {
	if sleep == nil {
		sleep = Sleep
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Retrier{interval: interval, sleep: sleep, logger: logger}
}

// Attempt renders url up to maxRetries times. A permanent failure is reported
// through the Outcome; the error is only set for fatal conditions (errors that
// are not page errors, or ctx being done while waiting to retry).
// A maxRetries below 1 allows a single attempt.
func (r *Retrier) Attempt(ctx context.Context, url string, maxRetries int, render RenderFunc) (Outcome, error) {
	limit := maxRetries
	if limit < 1 {
		limit = 1
	}

	a := Attempt{URL: url, State: StatePending}
	for {
		a.State = StateRendering
		a.Attempts++

		record, err := render(ctx, url)
		if err == nil {
			a.State = StateSuccess
			return Outcome{Record: record, Attempt: a}, nil
		}
		if !renderer.IsPageError(err) {
			return Outcome{Attempt: a}, err
		}
		a.LastErr = err

		if a.Attempts >= limit {
			a.State = StatePermanentFailure
			r.logger.Error().Str("url", url).Int("attempts", a.Attempts).Err(err).Msg("giving up on page")
			return Outcome{Attempt: a}, nil
		}

		a.State = StateRetryPending
		r.logger.Warn().Str("url", url).Int("attempt", a.Attempts).Int("max_attempts", limit).Err(err).Msg("page failed, retrying")

		if err := r.sleep(ctx, r.interval); err != nil {
			return Outcome{Attempt: a}, err
		}
	}
}
