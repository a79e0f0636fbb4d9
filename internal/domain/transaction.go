// Package domain defines the core interfaces and types for Kestrel.
package domain

// RawTransaction is an incoming transaction exactly as the model was
// trained on. JSON keys (including the space-separated ones) are fixed by
// the training dataset and must not be renamed.
type RawTransaction struct {
	TransactionAmount   float64 `json:"TransactionAmount"`
	TransactionDate     string  `json:"TransactionDate"`
	TransactionType     string  `json:"TransactionType"`
	Location            string  `json:"Location"`
	Channel             string  `json:"Channel"`
	CustomerAge         float64 `json:"CustomerAge"`
	CustomerOccupation  string  `json:"CustomerOccupation"`
	TransactionDuration float64 `json:"TransactionDuration"`
	LoginAttempts       float64 `json:"LoginAttempts"`
	AccountBalance      float64 `json:"AccountBalance"`
	PrevTransactionDate string  `json:"PreviousTransactionDate"`
	SenderCountry       string  `json:"Sender Country"`
	ReceiverCountry     string  `json:"Receiver Country"`
	SenderCurrency      string  `json:"Sender Currency"`
	ReceiverCurrency    string  `json:"Receiver Currency"`
	AccountStatus       string  `json:"Account Status"`
	InvalidPinStatus    string  `json:"Invalid Pin Status"`
	PinRetryLimit       float64 `json:"Invalid pin retry limits"`
	PinRetryCount       float64 `json:"Invalid pin retry count"`
}

// RequiredFields lists every raw field name a scoring request must carry.
// Validation happens at the HTTP layer, before the pipeline is invoked.
var RequiredFields = []string{
	"TransactionAmount",
	"TransactionDate",
	"TransactionType",
	"Location",
	"Channel",
	"CustomerAge",
	"CustomerOccupation",
	"TransactionDuration",
	"LoginAttempts",
	"AccountBalance",
	"PreviousTransactionDate",
	"Sender Country",
	"Receiver Country",
	"Sender Currency",
	"Receiver Currency",
	"Account Status",
	"Invalid Pin Status",
	"Invalid pin retry limits",
	"Invalid pin retry count",
}

// FeatureRecord is the canonical fixed-shape record fed to the scaler and
// classifier. The Vector() order must exactly match the order the artifacts
// were fitted on; any drift is a fatal configuration error, not a
// per-request one.
type FeatureRecord struct {
	Amount               float64
	TypeCode             float64
	LocationCode         float64
	ChannelCode          float64
	CustomerAge          float64
	OccupationCode       float64
	Duration             float64
	LoginAttempts        float64
	Balance              float64
	SenderCountryCode    float64
	ReceiverCountryCode  float64
	SenderCurrencyCode   float64
	ReceiverCurrencyCode float64
	AccountStatusCode    float64
	PinStatusCode        float64
	PinRetryLimit        float64
	PinRetryCount        float64
	Hour                 float64
	DayOfWeek            float64
	Month                float64
	IsWeekend            float64
	IsNightTime          float64
	HoursSincePrev       float64
	AmountToBalanceRatio float64
	IsCrossBorder        float64
	IsCurrencyMismatch   float64
}

// FeatureCount is the canonical feature vector width.
const FeatureCount = 26

// FeatureNames is the canonical feature order.
var FeatureNames = []string{
	"TransactionAmount",
	"TransactionType",
	"Location",
	"Channel",
	"CustomerAge",
	"CustomerOccupation",
	"TransactionDuration",
	"LoginAttempts",
	"AccountBalance",
	"Sender Country",
	"Receiver Country",
	"Sender Currency",
	"Receiver Currency",
	"Account Status",
	"Invalid Pin Status",
	"Invalid pin retry limits",
	"Invalid pin retry count",
	"Hour",
	"DayOfWeek",
	"Month",
	"IsWeekend",
	"IsNightTime",
	"HoursSincePrevTransaction",
	"AmountToBalanceRatio",
	"IsCrossBorder",
	"IsCurrencyMismatch",
}

// Vector returns the record as a dense vector in the canonical order.
func (r *FeatureRecord) Vector() []float64 {
	return []float64{
		r.Amount,
		r.TypeCode,
		r.LocationCode,
		r.ChannelCode,
		r.CustomerAge,
		r.OccupationCode,
		r.Duration,
		r.LoginAttempts,
		r.Balance,
		r.SenderCountryCode,
		r.ReceiverCountryCode,
		r.SenderCurrencyCode,
		r.ReceiverCurrencyCode,
		r.AccountStatusCode,
		r.PinStatusCode,
		r.PinRetryLimit,
		r.PinRetryCount,
		r.Hour,
		r.DayOfWeek,
		r.Month,
		r.IsWeekend,
		r.IsNightTime,
		r.HoursSincePrev,
		r.AmountToBalanceRatio,
		r.IsCrossBorder,
		r.IsCurrencyMismatch,
	}
}
