// internal/workers/supplychain/notify-decision/models.go
package notifydecision

type Input struct {
	Recommendation Recommendation `json:"recommendation"`
	RecipientEmail string         `json:"recipientEmail,omitempty"`
	RecipientPhone string         `json:"recipientPhone,omitempty"`
	Priority       string         `json:"priority,omitempty"`
}

type Recommendation struct {
	ProductCode     string  `json:"productCode"`
	OrderQuantity   int     `json:"order_quantity"`
	SupplierName    string  `json:"supplier_name"`
	Justification   string  `json:"justification"`
	ConfidenceScore float64 `json:"confidence_score"`
}

type Output struct {
	NotificationID string   `json:"notificationId"`
	Status         string   `json:"status"`
	Channels       []string `json:"channels"`
	SentAt         string   `json:"sentAt"`
}

const (
	StatusSent     = "sent"
	StatusDisabled = "disabled"

	ChannelEmail = "email"
	ChannelSMS   = "sms"

	PriorityHigh = "high"
)
