package prediction

import "errors"

// Error taxonomy for the aggregation core. Callers classify failures with
// errors.Is; everything else is wrapped with context at the call site.
var (
	// ErrInvalidPrediction marks sub-agent output violating the
	// confidence-range invariant. The agent is excluded from the request.
	ErrInvalidPrediction = errors.New("invalid prediction")

	// ErrAgentTimeout marks an agent that did not answer within its
	// per-agent deadline. Excluded from the request.
	ErrAgentTimeout = errors.New("agent timeout")

	// ErrNoAgentResponse is fatal for a request: zero agents produced a
	// usable prediction. Nothing is cached.
	ErrNoAgentResponse = errors.New("no agent response")

	// ErrWeightInvariant marks a strategy whose weights do not sum to 1.0.
	// This is a strategy bug and fails the request; it is never silently
	// renormalized.
	ErrWeightInvariant = errors.New("weight invariant violation")

	// ErrUnknownSport marks a request for a sport with no registered agent.
	ErrUnknownSport = errors.New("unknown sport")

	// ErrUnknownStrategy marks a request naming an unregistered strategy.
	ErrUnknownStrategy = errors.New("unknown weighting strategy")
)
