// internal/workers/supplychain/fetch-sales-history/models.go
package fetchsaleshistory

type Input struct {
	ProductCode  string `json:"productCode"`
	ForecastDays int    `json:"forecastDays,omitempty"`
}

type Product struct {
	ProductCode      string  `json:"productCode"`
	ProductName      string  `json:"productName"`
	Category         string  `json:"category"`
	CurrentInventory int     `json:"currentInventory"`
	ReorderPoint     int     `json:"reorderPoint"`
	SafetyStock      int     `json:"safetyStock"`
	UnitCost         float64 `json:"unitCost"`
	SellingPrice     float64 `json:"sellingPrice"`
}

type Supplier struct {
	SupplierID       string  `json:"supplierId"`
	SupplierName     string  `json:"supplierName"`
	LeadTimeDays     int     `json:"leadTimeDays"`
	MinOrderQuantity int     `json:"minOrderQuantity"`
	CostPerUnit      float64 `json:"costPerUnit"`
	ReliabilityScore float64 `json:"reliabilityScore"`
}

type SalesSummary struct {
	WindowDays   int     `json:"windowDays"`
	TotalUnits   int     `json:"totalUnits"`
	AverageDaily float64 `json:"averageDaily"`
	MaxDaily     int     `json:"maxDaily"`
}

type ForecastDay struct {
	Date            string  `json:"date"`
	PredictedDemand float64 `json:"predictedDemand"`
}

type Forecast struct {
	Days                 []ForecastDay `json:"days"`
	TotalPredictedDemand float64       `json:"totalPredictedDemand"`
	ModelUsed            string        `json:"modelUsed"`
}

type Output struct {
	ProductCode      string       `json:"productCode"`
	Product          Product      `json:"product"`
	Suppliers        []Supplier   `json:"suppliers"`
	SalesSummary     SalesSummary `json:"salesSummary"`
	BaselineForecast Forecast     `json:"baselineForecast"`
	ForecastDays     int          `json:"forecastDays"`
}
