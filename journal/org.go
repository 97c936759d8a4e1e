package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a Trade as an Org-mode block. Structured facts
// go in the PROPERTIES drawer; the Notes heading is left for the user.
func FormatTradeOrg(t Trade) string {
	heading := fmt.Sprintf("** %s %d %s (%s)", strings.ToUpper(string(t.Side)), t.Quantity, t.Symbol, shortID(t.ID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.ID))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", t.Symbol))
	b.WriteString(fmt.Sprintf(":SIDE: %s\n", t.Side))
	b.WriteString(fmt.Sprintf(":TYPE: %s\n", t.Type))
	b.WriteString(fmt.Sprintf(":QUANTITY: %d\n", t.Quantity))
	b.WriteString(fmt.Sprintf(":PRICE: %s\n", t.Price.StringFixed(4)))
	if t.LimitPrice != nil {
		b.WriteString(fmt.Sprintf(":LIMIT_PRICE: %s\n", t.LimitPrice.StringFixed(4)))
	}
	if t.StopPrice != nil {
		b.WriteString(fmt.Sprintf(":STOP_PRICE: %s\n", t.StopPrice.StringFixed(4)))
	}
	b.WriteString(fmt.Sprintf(":COMMISSION: %s\n", t.Commission.StringFixed(2)))
	b.WriteString(fmt.Sprintf(":TOTAL: %s\n", t.Total.StringFixed(2)))
	if !t.RealizedPL.IsZero() {
		b.WriteString(fmt.Sprintf(":REALIZED_PL: %s\n", t.RealizedPL.StringFixed(2)))
	}
	b.WriteString(fmt.Sprintf(":TIME: %s\n", t.Time.UTC().Format(time.RFC3339)))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Notes\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []Trade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// shortID keeps the tail of a ULID; the head is the shared timestamp.
func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
