// internal/workers/screening/screen-stocks/models.go
package screenstocks

import "assistant-workers/internal/screening"

type Input struct {
	SessionID string           `json:"sessionId"`
	Intent    screening.Intent `json:"screeningIntent"`
}

type Output struct {
	SessionID string              `json:"sessionId"`
	Screening screening.ResultSet `json:"screening"`
}

// auditDocument is what gets indexed into Elasticsearch per completed screen.
type auditDocument struct {
	SessionID    string              `json:"sessionId"`
	Sector       string              `json:"sector"`
	Filters      screening.FilterSet `json:"filters,omitempty"`
	TotalFound   int                 `json:"totalFound"`
	AfterFilters int                 `json:"afterFilters"`
	Success      bool                `json:"success"`
	Timestamp    string              `json:"timestamp"`
}
