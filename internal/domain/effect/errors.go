package effect

import "errors"

// Domain errors
var (
	// Store errors
	ErrPriceNotFound = errors.New("price not found")
	ErrEventNotFound = errors.New("event not found")

	// Feed errors
	ErrNoFeedData   = errors.New("no data from market feed")
	ErrFeedTimeout  = errors.New("market feed timeout")
	ErrInvalidQuote = errors.New("invalid response from market feed")

	// Resolution errors
	ErrUnresolvedPriceBefore = errors.New("price before could not be resolved")
	ErrInvalidPrice          = errors.New("invalid price: must be positive")

	// Run errors
	ErrPersistence    = errors.New("effect persistence failed")
	ErrRunInProgress  = errors.New("pipeline run already in progress")
	ErrNoScoredEvents = errors.New("no scored events available")

	// Analysis errors
	ErrInsufficientData = errors.New("insufficient data for analysis")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPriceNotFound) ||
		errors.Is(err, ErrEventNotFound)
}

// IsSourceUnavailable checks if the error means a price source had nothing to offer
func IsSourceUnavailable(err error) bool {
	return IsNotFoundError(err) ||
		errors.Is(err, ErrNoFeedData) ||
		errors.Is(err, ErrFeedTimeout) ||
		errors.Is(err, ErrInvalidQuote)
}
