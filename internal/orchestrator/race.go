package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fundamenta/fundi/internal/metrics"
)

// ErrProviderPanic wraps a panic recovered from a provider goroutine.
var ErrProviderPanic = errors.New("provider panicked")

// winner identifies who resolved a race.
type winner string

const (
	winnerPrimary   winner = "primary"
	winnerSecondary winner = "secondary"
	winnerNone      winner = "none"
)

type result[T any] struct {
	val     T
	err     error
	primary bool
}

// raceSpec configures one race. Hooks run on the racing goroutine, one at a time.
type raceSpec struct {
	op        string
	primary   string
	secondary string
	delay     time.Duration
	// timeout is the soft primary timeout; zero disables it.
	timeout          time.Duration
	onPrimaryTimeout func()
	onPrimaryFailure func(error)
	onWin            func(winner)
}

// race starts primary at once and secondary after spec.delay, or immediately if primary fails
// first. The first success wins and the other call's context is cancelled. Failed results are
// returned so callers can use any fallback value they carry.
func race[T any](ctx context.Context, o *Orchestrator, spec raceSpec, primary, secondary func(context.Context) (T, error)) (T, winner, []result[T], error) {
	var zero T

	pctx, pcancel := context.WithCancel(ctx)
	defer pcancel()
	sctx, scancel := context.WithCancel(ctx)
	defer scancel()

	// Buffered for both calls so an abandoned goroutine never blocks.
	results := make(chan result[T], 2)
	launch := func(c context.Context, isPrimary bool, name string, fn func(context.Context) (T, error)) {
		go func() {
			start := time.Now()
			var res result[T]
			defer func() {
				if rec := recover(); rec != nil {
					res = result[T]{err: fmt.Errorf("%w: %v", ErrProviderPanic, rec), primary: isPrimary}
					slog.Error("Orchestrator.race: provider panic recovered", "op", spec.op, "provider", name, "panic", rec)
				}
				o.observe(name, spec.op, res.err, time.Since(start))
				results <- res
			}()
			v, err := fn(c)
			res = result[T]{val: v, err: err, primary: isPrimary}
		}()
	}

	launch(pctx, true, spec.primary, primary)

	stagger := time.NewTimer(spec.delay)
	defer stagger.Stop()
	var timeoutC <-chan time.Time
	if spec.timeout > 0 {
		t := time.NewTimer(spec.timeout)
		defer t.Stop()
		timeoutC = t.C
	}

	secondaryStarted := false
	primaryDone := false
	pending := 1
	var failed []result[T]

	startSecondary := func(reason string) {
		if secondaryStarted {
			return
		}
		secondaryStarted = true
		pending++
		slog.Debug("Orchestrator.race: starting secondary", "op", spec.op, "reason", reason)
		launch(sctx, false, spec.secondary, secondary)
	}

	for pending > 0 {
		select {
		case <-ctx.Done():
			metrics.RaceWinners.WithLabelValues(spec.op, string(winnerNone)).Inc()
			return zero, winnerNone, failed, ctx.Err()

		case <-stagger.C:
			startSecondary("stagger delay elapsed")

		case <-timeoutC:
			timeoutC = nil
			if !primaryDone && spec.onPrimaryTimeout != nil {
				slog.Warn("Orchestrator.race: primary exceeded timeout", "op", spec.op, "timeout", spec.timeout)
				spec.onPrimaryTimeout()
			}

		case res := <-results:
			pending--
			if res.primary {
				primaryDone = true
			}
			if res.err == nil {
				w := winnerSecondary
				if res.primary {
					w = winnerPrimary
					scancel()
				} else {
					pcancel()
				}
				if spec.onWin != nil {
					spec.onWin(w)
				}
				metrics.RaceWinners.WithLabelValues(spec.op, string(w)).Inc()
				return res.val, w, failed, nil
			}

			failed = append(failed, res)
			if res.primary {
				slog.Debug("Orchestrator.race: primary failed", "op", spec.op, "error", res.err)
				if spec.onPrimaryFailure != nil {
					spec.onPrimaryFailure(res.err)
				}
				startSecondary("primary failed")
			} else {
				slog.Debug("Orchestrator.race: secondary failed", "op", spec.op, "error", res.err)
			}
		}
	}

	metrics.RaceWinners.WithLabelValues(spec.op, string(winnerNone)).Inc()
	return zero, winnerNone, failed, nil
}
