package plaidclient

import (
	"time"

	"cloud.google.com/go/civil"
)

// TransactionWindowDays is the length of the rolling transaction window.
const TransactionWindowDays = 30

// TrailingWindow returns the inclusive calendar-date range ending at now.
// Plaid expects plain dates with no time component.
func TrailingWindow(now time.Time, days int) (start, end civil.Date) {
	end = civil.DateOf(now)
	start = civil.DateOf(now.AddDate(0, 0, -days))
	return start, end
}
