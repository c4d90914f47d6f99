package ledger

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usd = message.NewPrinter(language.AmericanEnglish)

// FormatUSD renders an amount for alert text, e.g. $12,500.00
func FormatUSD(d decimal.Decimal) string {
	return usd.Sprintf("$%.2f", d.Round(2).InexactFloat64())
}
