// internal/workers/screening/explain-results/models.go
package explainresults

import "assistant-workers/internal/screening"

type Input struct {
	SessionID string              `json:"sessionId"`
	Query     string              `json:"query,omitempty"`
	Screening screening.ResultSet `json:"screening"`
}

type Output struct {
	SessionID   string `json:"sessionId"`
	Explanation string `json:"explanation"`
}
