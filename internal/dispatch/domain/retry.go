package domain

// RetryDecision is the outcome of evaluating the re-dispatch policy for a
// pending request whose pool is exhausted or whose round window elapsed.
type RetryDecision int

const (
	// RetryRedispatch runs a fresh dispatch round with an expanded radius.
	RetryRedispatch RetryDecision = iota
	// RetryFail marks the request failed-to-match; the client can still cancel.
	RetryFail
)

// EvaluateRetry decides whether to re-dispatch. roundsSoFar counts completed
// dispatch rounds; maxRounds is configuration.
func EvaluateRetry(roundsSoFar, maxRounds int) RetryDecision {
	if roundsSoFar < maxRounds {
		return RetryRedispatch
	}
	return RetryFail
}

// ExpandRadius grows the search radius by the configured factor, capped at
// the platform ceiling.
func ExpandRadius(currentKM, growthFactor, maxKM float64) float64 {
	expanded := currentKM * growthFactor
	if expanded > maxKM {
		return maxKM
	}
	return expanded
}
