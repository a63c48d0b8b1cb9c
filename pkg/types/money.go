package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var centsFactor = decimal.NewFromInt(100)

// FormatCents renders a cent amount as a display string, e.g. "$1240.50".
// Used in notification copy.
func FormatCents(cents int64) string {
	amount := decimal.NewFromInt(cents).Div(centsFactor)
	return fmt.Sprintf("$%s", amount.StringFixed(2))
}
