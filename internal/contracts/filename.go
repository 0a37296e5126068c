package contracts

import (
	"fmt"
	"time"
)

// OutputFilename derives the output file name from the effective date range.
// A single-day range yields contracts_YYYYMMDD.json, a multi-day range
// contracts_YYYYMMDD_to_YYYYMMDD.json. When either bound does not parse as
// MM/DD/YYYY the name falls back to the fetch timestamp.
func OutputFilename(dateRange DateRange, now time.Time) string {
	from, errFrom := time.Parse(DateLayout, dateRange.PostedFrom)
	to, errTo := time.Parse(DateLayout, dateRange.PostedTo)
	if errFrom != nil || errTo != nil {
		return fmt.Sprintf("contracts_%s.json", now.Format("20060102_150405"))
	}
	if dateRange.SingleDay() {
		return fmt.Sprintf("contracts_%s.json", from.Format("20060102"))
	}
	return fmt.Sprintf("contracts_%s_to_%s.json", from.Format("20060102"), to.Format("20060102"))
}
