package effect

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/wonny/marketpulse/internal/domain/effect"
)

// Outcome is the resolver result for one event
type Outcome struct {
	Event      effect.ScoredNewsEvent
	Resolution effect.Resolution
	Err        error
}

// Materialize turns resolved outcomes into effects in input order.
// Outcomes with an error or a non-positive price are dropped and counted.
func Materialize(outcomes []Outcome) ([]effect.SentimentPriceEffect, int) {
	effects := make([]effect.SentimentPriceEffect, 0, len(outcomes))
	dropped := 0

	for _, o := range outcomes {
		if o.Err != nil {
			dropped++
			continue
		}

		e, err := effect.NewEffect(o.Event, o.Resolution)
		if err != nil {
			log.Warn().Err(err).
				Str("ticker", o.Event.Ticker).
				Int64("event_id", o.Event.ID).
				Msg("Dropping effect with invalid prices")
			dropped++
			continue
		}
		effects = append(effects, e)
	}

	return effects, dropped
}

// tally fills the resolution counters of a run summary
func tally(summary *effect.RunSummary, effects []effect.SentimentPriceEffect, dropped int) {
	summary.Resolved = len(effects)
	summary.Dropped = dropped
	summary.Total = summary.Resolved + dropped

	for _, e := range effects {
		if e.Corrected {
			summary.Corrected++
		}
		if e.Synthetic {
			summary.Synthetic++
		}
		if e.AfterSource.IsLive() {
			summary.LiveQuoted++
		}
	}
}

func isUnresolved(err error) bool {
	return errors.Is(err, effect.ErrUnresolvedPriceBefore)
}
