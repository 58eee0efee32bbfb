// internal/workers/supplychain/recommend-reorder/models.go
package recommendreorder

// The input mirrors the variables produced by the fetch-sales-history and
// fetch-weather workers earlier in the process.

type Input struct {
	ProductCode         string   `json:"productCode"`
	Product             Product  `json:"product"`
	BaselineForecast    Forecast `json:"baselineForecast"`
	AverageDemandFactor float64  `json:"averageDemandFactor"`
	Suppliers           []Supplier `json:"suppliers"`
	ForecastDays        int      `json:"forecastDays,omitempty"`
}

type Product struct {
	ProductName      string `json:"productName"`
	CurrentInventory int    `json:"currentInventory"`
	ReorderPoint     int    `json:"reorderPoint"`
}

type Forecast struct {
	TotalPredictedDemand float64 `json:"totalPredictedDemand"`
	ModelUsed            string  `json:"modelUsed"`
}

type Supplier struct {
	SupplierName     string  `json:"supplierName"`
	LeadTimeDays     int     `json:"leadTimeDays"`
	MinOrderQuantity int     `json:"minOrderQuantity"`
	CostPerUnit      float64 `json:"costPerUnit"`
}

// Recommendation keeps the decision fields under their legacy snake_case
// names so downstream consumers of the process variables stay compatible.
type Recommendation struct {
	ProductCode     string  `json:"productCode"`
	OrderQuantity   int     `json:"order_quantity"`
	SupplierName    string  `json:"supplier_name"`
	Justification   string  `json:"justification"`
	ConfidenceScore float64 `json:"confidence_score"`
}

type Output struct {
	Recommendation Recommendation `json:"recommendation"`
}
