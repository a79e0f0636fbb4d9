package feature

import (
	"math"
	"testing"

	"github.com/opensource-finance/kestrel/internal/artifact"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func testRegistry(t *testing.T) *artifact.Registry {
	t.Helper()
	registry, err := artifact.NewRegistry(map[string][]string{
		"TransactionType":    {"Deposit", "Transfer", "Withdrawal"},
		"Location":           {"Chicago", "Kigali", "New York"},
		"Channel":            {"ATM", "Branch", "Online"},
		"CustomerOccupation": {"Doctor", "Engineer", "Student", "Teacher"},
		"Sender Country":     {"Germany", "Rwanda", "USA"},
		"Receiver Country":   {"Germany", "Rwanda", "USA"},
		"Sender Currency":    {"EUR", "RWF", "USD"},
		"Receiver Currency":  {"EUR", "RWF", "USD"},
		"Account Status":     {"Active", "Dormant", "Flagged"},
		"Invalid Pin Status": {"Locked", "Valid"},
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return registry
}

func baseRaw() *domain.RawTransaction {
	return &domain.RawTransaction{
		TransactionAmount:   150,
		TransactionDate:     "15/09/2024 14:30", // Sunday afternoon
		TransactionType:     "Withdrawal",
		Location:            "New York",
		Channel:             "ATM",
		CustomerAge:         35,
		CustomerOccupation:  "Teacher",
		TransactionDuration: 45,
		LoginAttempts:       1,
		AccountBalance:      5000,
		PrevTransactionDate: "10/09/2024 10:20",
		SenderCountry:       "USA",
		ReceiverCountry:     "USA",
		SenderCurrency:      "USD",
		ReceiverCurrency:    "USD",
		AccountStatus:       "Active",
		InvalidPinStatus:    "Valid",
		PinRetryLimit:       3,
		PinRetryCount:       0,
	}
}

func TestNormalizeTemporalFeatures(t *testing.T) {
	n := NewNormalizer(testRegistry(t))

	t.Run("SundayAfternoon", func(t *testing.T) {
		rec, err := n.Normalize(baseRaw(), nil)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if rec.Hour != 14 {
			t.Errorf("expected Hour 14, got %v", rec.Hour)
		}
		if rec.DayOfWeek != 6 { // Monday=0 numbering: Sunday is 6
			t.Errorf("expected DayOfWeek 6, got %v", rec.DayOfWeek)
		}
		if rec.Month != 9 {
			t.Errorf("expected Month 9, got %v", rec.Month)
		}
		if rec.IsWeekend != 1 {
			t.Errorf("expected IsWeekend 1 for Sunday, got %v", rec.IsWeekend)
		}
		if rec.IsNightTime != 0 {
			t.Errorf("expected IsNightTime 0 at 14:30, got %v", rec.IsNightTime)
		}
	})

	t.Run("WeekendBoundary", func(t *testing.T) {
		cases := []struct {
			date string
			want float64
		}{
			{"13/09/2024 12:00", 0}, // Friday
			{"14/09/2024 12:00", 1}, // Saturday
			{"16/09/2024 12:00", 0}, // Monday
		}
		for _, tc := range cases {
			raw := baseRaw()
			raw.TransactionDate = tc.date
			rec, err := n.Normalize(raw, nil)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if rec.IsWeekend != tc.want {
				t.Errorf("%s: expected IsWeekend %v, got %v", tc.date, tc.want, rec.IsWeekend)
			}
		}
	})

	t.Run("NightTimeBoundary", func(t *testing.T) {
		cases := []struct {
			hour string
			want float64
		}{
			{"06", 1},
			{"07", 0},
			{"21", 0},
			{"22", 1},
			{"23", 1},
		}
		for _, tc := range cases {
			raw := baseRaw()
			raw.TransactionDate = "16/09/2024 " + tc.hour + ":00"
			rec, err := n.Normalize(raw, nil)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if rec.IsNightTime != tc.want {
				t.Errorf("hour %s: expected IsNightTime %v, got %v", tc.hour, tc.want, rec.IsNightTime)
			}
		}
	})
}

func TestNormalizeGapSubstitution(t *testing.T) {
	n := NewNormalizer(testRegistry(t))

	t.Run("ComputableGap", func(t *testing.T) {
		raw := baseRaw()
		raw.PrevTransactionDate = "14/09/2024 14:30"
		rec, err := n.Normalize(raw, nil)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if rec.HoursSincePrev != 24 {
			t.Errorf("expected 24h gap, got %v", rec.HoursSincePrev)
		}
	})

	t.Run("MissingPrevUsesMedian", func(t *testing.T) {
		raw := baseRaw()
		raw.PrevTransactionDate = "not a date"
		median := 36.5
		rec, err := n.Normalize(raw, &median)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if rec.HoursSincePrev != 36.5 {
			t.Errorf("expected median 36.5, got %v", rec.HoursSincePrev)
		}
	})

	t.Run("MissingPrevNoMedianDefaultsToWeek", func(t *testing.T) {
		raw := baseRaw()
		raw.PrevTransactionDate = ""
		rec, err := n.Normalize(raw, nil)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if rec.HoursSincePrev != DefaultGapHours {
			t.Errorf("expected %v, got %v", DefaultGapHours, rec.HoursSincePrev)
		}
	})

	t.Run("UnparseableCurrentZeroFillsTemporal", func(t *testing.T) {
		raw := baseRaw()
		raw.TransactionDate = "2024-09-15T14:30:00Z" // wrong format, strictly rejected
		rec, err := n.Normalize(raw, nil)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if rec.Hour != 0 || rec.DayOfWeek != 0 || rec.Month != 0 || rec.IsWeekend != 0 || rec.IsNightTime != 0 {
			t.Errorf("expected zero-filled temporal features, got %+v", rec)
		}
		if rec.HoursSincePrev != DefaultGapHours {
			t.Errorf("expected default gap, got %v", rec.HoursSincePrev)
		}
	})
}

func TestNormalizeDerivedFeatures(t *testing.T) {
	n := NewNormalizer(testRegistry(t))

	t.Run("AmountToBalanceRatio", func(t *testing.T) {
		rec, err := n.Normalize(baseRaw(), nil)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		want := 150.0 / 5001.0
		if math.Abs(rec.AmountToBalanceRatio-want) > 1e-12 {
			t.Errorf("expected ratio %v, got %v", want, rec.AmountToBalanceRatio)
		}
	})

	t.Run("ZeroBalanceDoesNotDivideByZero", func(t *testing.T) {
		raw := baseRaw()
		raw.AccountBalance = 0
		rec, err := n.Normalize(raw, nil)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if rec.AmountToBalanceRatio != 150 {
			t.Errorf("expected ratio 150, got %v", rec.AmountToBalanceRatio)
		}
	})

	t.Run("CrossBorderAndCurrencyMismatch", func(t *testing.T) {
		raw := baseRaw()
		raw.ReceiverCountry = "Germany"
		raw.ReceiverCurrency = "EUR"
		rec, err := n.Normalize(raw, nil)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if rec.IsCrossBorder != 1 {
			t.Errorf("expected IsCrossBorder 1, got %v", rec.IsCrossBorder)
		}
		if rec.IsCurrencyMismatch != 1 {
			t.Errorf("expected IsCurrencyMismatch 1, got %v", rec.IsCurrencyMismatch)
		}
	})

	t.Run("CategoricalEncoding", func(t *testing.T) {
		rec, err := n.Normalize(baseRaw(), nil)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if rec.TypeCode != 2 { // Withdrawal
			t.Errorf("expected TypeCode 2, got %v", rec.TypeCode)
		}
		if rec.PinStatusCode != 1 { // Valid
			t.Errorf("expected PinStatusCode 1, got %v", rec.PinStatusCode)
		}
	})

	t.Run("UnseenCategoryFallsBack", func(t *testing.T) {
		raw := baseRaw()
		raw.Location = "Atlantis"
		rec, err := n.Normalize(raw, nil)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if rec.LocationCode != 0 {
			t.Errorf("expected fallback code 0, got %v", rec.LocationCode)
		}
	})

	t.Run("VectorWidth", func(t *testing.T) {
		rec, err := n.Normalize(baseRaw(), nil)
		if err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if len(rec.Vector()) != domain.FeatureCount {
			t.Errorf("expected %d features, got %d", domain.FeatureCount, len(rec.Vector()))
		}
	})
}

func TestBatchMedianHours(t *testing.T) {
	withGap := func(date, prev string) *domain.RawTransaction {
		raw := baseRaw()
		raw.TransactionDate = date
		raw.PrevTransactionDate = prev
		return raw
	}

	t.Run("OddCount", func(t *testing.T) {
		batch := []*domain.RawTransaction{
			withGap("15/09/2024 12:00", "15/09/2024 02:00"), // 10h
			withGap("15/09/2024 12:00", "14/09/2024 12:00"), // 24h
			withGap("15/09/2024 12:00", "13/09/2024 12:00"), // 48h
		}
		median := BatchMedianHours(batch)
		if median == nil || *median != 24 {
			t.Errorf("expected median 24, got %v", median)
		}
	})

	t.Run("EvenCountAveragesMiddlePair", func(t *testing.T) {
		batch := []*domain.RawTransaction{
			withGap("15/09/2024 12:00", "15/09/2024 02:00"), // 10h
			withGap("15/09/2024 12:00", "14/09/2024 12:00"), // 24h
		}
		median := BatchMedianHours(batch)
		if median == nil || *median != 17 {
			t.Errorf("expected median 17, got %v", median)
		}
	})

	t.Run("NoComputableGaps", func(t *testing.T) {
		batch := []*domain.RawTransaction{
			withGap("15/09/2024 12:00", ""),
			withGap("bad", "also bad"),
		}
		if median := BatchMedianHours(batch); median != nil {
			t.Errorf("expected nil median, got %v", *median)
		}
	})
}
