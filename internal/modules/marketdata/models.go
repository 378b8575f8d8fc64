package marketdata

import (
	"fmt"
	"time"
)

// PriceRecord is one cached daily close
type PriceRecord struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Close  float64 `json:"close"`
}

// InsufficientHistoryError indicates the aligned price table is below
// the minimum observation floor required for estimation.
type InsufficientHistoryError struct {
	Rows     int
	Required int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient price history: only %d aligned rows available (need at least %d)", e.Rows, e.Required)
}

// parseDateRange converts a range string to a start date, empty meaning
// no lower bound.
func parseDateRange(rangeStr string) string {
	if rangeStr == "all" || rangeStr == "" {
		return ""
	}

	now := time.Now()
	var startDate time.Time

	switch rangeStr {
	case "1mo":
		startDate = now.AddDate(0, -1, 0)
	case "3mo":
		startDate = now.AddDate(0, -3, 0)
	case "6mo":
		startDate = now.AddDate(0, -6, 0)
	case "1y":
		startDate = now.AddDate(-1, 0, 0)
	case "2y":
		startDate = now.AddDate(-2, 0, 0)
	case "5y":
		startDate = now.AddDate(-5, 0, 0)
	case "10y":
		startDate = now.AddDate(-10, 0, 0)
	default:
		return ""
	}

	return startDate.Format("2006-01-02")
}
