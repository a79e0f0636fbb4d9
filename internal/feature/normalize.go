// Package feature derives the canonical feature record from a raw
// transaction. The derivation is a pure transform with a fixed step order:
// timestamp parse, temporal features, cross-record delta, ratio/flag
// features, categorical encoding.
package feature

import (
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/artifact"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// TimeLayout is the strict timestamp format of the training data.
const TimeLayout = "02/01/2006 15:04"

// DefaultGapHours substitutes HoursSincePrevTransaction when no batch
// median is computable: one week, matching the training-time imputation.
const DefaultGapHours = 168.0

// Normalizer turns raw transactions into canonical feature records using a
// fixed encoder registry. It is stateless and safe for concurrent use.
type Normalizer struct {
	encoders *artifact.Registry
}

// NewNormalizer creates a normalizer over the given registry.
func NewNormalizer(encoders *artifact.Registry) *Normalizer {
	return &Normalizer{encoders: encoders}
}

// Normalize derives the canonical feature record for one raw transaction.
//
// medianHours is the batch-wide median gap used when either timestamp fails
// to parse; pass nil for single-transaction calls, in which case
// DefaultGapHours applies.
//
// Malformed timestamps are not rejected: null-derived temporal features are
// zero-filled, exactly as the artifacts were trained. Callers needing
// stricter validation must validate the raw input first.
func (n *Normalizer) Normalize(raw *domain.RawTransaction, medianHours *float64) (*domain.FeatureRecord, error) {
	rec := &domain.FeatureRecord{
		Amount:        raw.TransactionAmount,
		CustomerAge:   raw.CustomerAge,
		Duration:      raw.TransactionDuration,
		LoginAttempts: raw.LoginAttempts,
		Balance:       raw.AccountBalance,
		PinRetryLimit: raw.PinRetryLimit,
		PinRetryCount: raw.PinRetryCount,
	}

	current, currentOK := parseTimestamp(raw.TransactionDate)
	previous, previousOK := parseTimestamp(raw.PrevTransactionDate)

	if currentOK {
		rec.Hour = float64(current.Hour())
		rec.DayOfWeek = float64(pythonWeekday(current.Weekday()))
		rec.Month = float64(int(current.Month()))
		if rec.DayOfWeek >= 5 {
			rec.IsWeekend = 1
		}
		if current.Hour() >= 22 || current.Hour() <= 6 {
			rec.IsNightTime = 1
		}
	}

	if currentOK && previousOK {
		rec.HoursSincePrev = current.Sub(previous).Hours()
	} else if medianHours != nil {
		rec.HoursSincePrev = *medianHours
	} else {
		rec.HoursSincePrev = DefaultGapHours
	}

	rec.AmountToBalanceRatio = raw.TransactionAmount / (raw.AccountBalance + 1)
	if raw.SenderCountry != raw.ReceiverCountry {
		rec.IsCrossBorder = 1
	}
	if raw.SenderCurrency != raw.ReceiverCurrency {
		rec.IsCurrencyMismatch = 1
	}

	if err := n.encode(raw, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (n *Normalizer) encode(raw *domain.RawTransaction, rec *domain.FeatureRecord) error {
	targets := []struct {
		field string
		value string
		dst   *float64
	}{
		{"TransactionType", raw.TransactionType, &rec.TypeCode},
		{"Location", raw.Location, &rec.LocationCode},
		{"Channel", raw.Channel, &rec.ChannelCode},
		{"CustomerOccupation", raw.CustomerOccupation, &rec.OccupationCode},
		{"Sender Country", raw.SenderCountry, &rec.SenderCountryCode},
		{"Receiver Country", raw.ReceiverCountry, &rec.ReceiverCountryCode},
		{"Sender Currency", raw.SenderCurrency, &rec.SenderCurrencyCode},
		{"Receiver Currency", raw.ReceiverCurrency, &rec.ReceiverCurrencyCode},
		{"Account Status", raw.AccountStatus, &rec.AccountStatusCode},
		{"Invalid Pin Status", raw.InvalidPinStatus, &rec.PinStatusCode},
	}

	for _, t := range targets {
		code, err := n.encoders.Encode(t.field, t.value)
		if err != nil {
			return err
		}
		*t.dst = float64(code)
	}
	return nil
}

// BatchMedianHours computes the median transaction gap over a batch,
// considering only items where both timestamps parse. Returns nil when no
// gap is computable. The result is applied to every record in the batch
// needing substitution, so batch scoring is a function of the whole batch.
func BatchMedianHours(raws []*domain.RawTransaction) *float64 {
	var gaps []float64
	for _, raw := range raws {
		current, okC := parseTimestamp(raw.TransactionDate)
		previous, okP := parseTimestamp(raw.PrevTransactionDate)
		if okC && okP {
			gaps = append(gaps, current.Sub(previous).Hours())
		}
	}
	if len(gaps) == 0 {
		return nil
	}

	sort.Float64s(gaps)
	mid := len(gaps) / 2
	var median float64
	if len(gaps)%2 == 1 {
		median = gaps[mid]
	} else {
		median = (gaps[mid-1] + gaps[mid]) / 2
	}
	return &median
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// pythonWeekday maps Go's Sunday=0 weekday to the Monday=0 numbering the
// model was trained on.
func pythonWeekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}
