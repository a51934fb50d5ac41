// Package wrappers provides composable decorators over edge.EdgeFunc:
// rate limiting, adaptive rate limiting, retry, and conditional dispatch.
// Each wrapper has the same signature as the function it decorates, so they
// compose freely (Retry(RateLimit(fn)) re-enters the limiter on every
// attempt).
package wrappers

import (
	"context"

	"github.com/beakerflow/beaker/engine/edge"
	pkgfn "github.com/beakerflow/beaker/pkg/fn"
	"github.com/beakerflow/beaker/pkg/resilience"
)

// asStage adapts an edge.EdgeFunc to the pkg/fn.Stage shape, so edge
// wrappers can compose over the same generic Stage decorators the rest of
// the resilience package is built on.
func asStage(f edge.EdgeFunc) pkgfn.Stage[edge.Input, edge.Result] {
	return func(ctx context.Context, in edge.Input) pkgfn.Result[edge.Result] {
		return pkgfn.FromPair(f(ctx, in))
	}
}

// fromStage unwraps a pkg/fn.Stage back down to an edge.EdgeFunc.
func fromStage(stage pkgfn.Stage[edge.Input, edge.Result]) edge.EdgeFunc {
	return func(ctx context.Context, in edge.Input) (edge.Result, error) {
		return stage(ctx, in).Unwrap()
	}
}

// RateLimit bounds fn so consecutive invocations are at least 1/rps seconds
// apart, suspending the caller for the shortfall when a call arrives early.
func RateLimit(fn edge.EdgeFunc, rps float64) edge.EdgeFunc {
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: rps, Burst: 1})
	return fromStage(resilience.LimiterStageWait(limiter, asStage(fn)))
}

// AdaptiveRateLimit maintains an effective rate starting at rps. Each time
// an invocation fails with an error matching isTimeout, the effective rate
// is divided by backOffRate, with no lower bound. After
// speedUpAfter consecutive successes, the effective rate is multiplied by
// backOffRate again, up to the original rps ceiling.
func AdaptiveRateLimit(fn edge.EdgeFunc, isTimeout func(error) bool, rps, backOffRate float64, speedUpAfter int) edge.EdgeFunc {
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: rps, Burst: 1})
	ceiling := rps
	successes := 0

	return func(ctx context.Context, in edge.Input) (edge.Result, error) {
		if err := limiter.Wait(ctx); err != nil {
			return edge.Result{}, err
		}

		res, err := fn(ctx, in)
		if err != nil && isTimeout(err) {
			successes = 0
			limiter.SetLimit(limiter.Limit() / backOffRate)
			return res, err
		}
		if err != nil {
			return res, err
		}

		successes++
		if successes >= speedUpAfter && limiter.Limit() < ceiling {
			successes = 0
			next := limiter.Limit() * backOffRate
			if next > ceiling {
				next = ceiling
			}
			limiter.SetLimit(next)
		}
		return res, nil
	}
}

// Retry invokes fn up to retries+1 times, re-raising the last error if
// every attempt fails. It never sleeps between attempts; compose with
// RateLimit (Retry(RateLimit(fn), n)) to space out attempts.
func Retry(fn edge.EdgeFunc, retries int) edge.EdgeFunc {
	return func(ctx context.Context, in edge.Input) (edge.Result, error) {
		var res edge.Result
		var err error
		for attempt := 0; attempt <= retries; attempt++ {
			res, err = fn(ctx, in)
			if err == nil {
				return res, nil
			}
		}
		return res, err
	}
}

// IfFalse selects what Conditional does when its predicate is false.
type IfFalse int

const (
	// Drop filters the record out (equivalent to edge.Nothing()).
	Drop IfFalse = iota
	// Send forwards the input payload unchanged.
	Send
)

// Conditional invokes fn only when predicate holds; otherwise it either
// drops the record (requires the edge's AllowFilter) or forwards the input
// payload unchanged. json.RawMessage's own MarshalJSON re-emits the exact
// source bytes, so edge.One(in.Payload) is a true passthrough.
func Conditional(fn edge.EdgeFunc, predicate func(edge.Input) bool, ifFalse IfFalse) edge.EdgeFunc {
	return func(ctx context.Context, in edge.Input) (edge.Result, error) {
		if predicate(in) {
			return fn(ctx, in)
		}
		if ifFalse == Send {
			return edge.One(in.Payload), nil
		}
		return edge.Nothing(), nil
	}
}
