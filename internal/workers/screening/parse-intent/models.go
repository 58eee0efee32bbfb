// internal/workers/screening/parse-intent/models.go
package parseintent

import "assistant-workers/internal/screening"

type Input struct {
	Query       string            `json:"query"`
	SessionID   string            `json:"sessionId,omitempty"`
	PriorIntent *screening.Intent `json:"priorIntent,omitempty"`
}

// Output carries exactly one of Intent or Clarification; Outcome tells the
// gateway which branch to take.
type Output struct {
	SessionID     string                   `json:"sessionId"`
	Outcome       string                   `json:"outcome"`
	Intent        *screening.Intent        `json:"screeningIntent,omitempty"`
	Clarification *screening.Clarification `json:"clarification,omitempty"`
}

const (
	OutcomeIntent        = "intent"
	OutcomeClarification = "clarification"
)
