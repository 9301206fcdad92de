package resolver

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/wonny/marketpulse/internal/domain/effect"
)

// Input is what every cascade step sees
type Input struct {
	Event       effect.ScoredNewsEvent
	PriceBefore float64 // set once the price-before cascade succeeded
	PriceAfter  float64 // set once the price-after cascade succeeded
}

// Step is one fallback strategy. It reports ok=false to pass control to the next step.
type Step[T any] struct {
	Source effect.PriceSource
	Run    func(ctx context.Context, in Input) (T, bool)
}

// runCascade returns the result of the first successful step, in order
func runCascade[T any](ctx context.Context, cascade string, in Input, steps []Step[T]) (T, effect.PriceSource, bool) {
	for i, step := range steps {
		v, ok := step.Run(ctx, in)
		if ok {
			log.Debug().
				Str("cascade", cascade).
				Str("ticker", in.Event.Ticker).
				Int64("event_id", in.Event.ID).
				Int("step", i+1).
				Str("source", string(step.Source)).
				Msg("Cascade step succeeded")
			return v, step.Source, true
		}
	}

	var zero T
	return zero, "", false
}

// Sources lists step sources in cascade order
func Sources[T any](steps []Step[T]) []effect.PriceSource {
	out := make([]effect.PriceSource, len(steps))
	for i, s := range steps {
		out[i] = s.Source
	}
	return out
}
