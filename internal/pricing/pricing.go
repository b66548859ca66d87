package pricing

import (
	"errors"
	"fmt"

	"order-workflow/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPricing is returned when a sell price is below cost and the
	// policy rejects underpricing.
	ErrInvalidPricing = errors.New("sell price below cost price")

	// ErrMissingQuote is returned when a line has no quote, or a quote
	// references no line.
	ErrMissingQuote = errors.New("incomplete pricing")

	// ErrUnpricedLine is returned by Totals when a line has no stored prices.
	ErrUnpricedLine = errors.New("order line not priced")
)

// Quote is the administrator's cost and sell price for one product line.
// Both are always set together.
type Quote struct {
	Cost decimal.Decimal
	Sell decimal.Decimal
}

// Policy controls how underpricing is handled. Selling below cost is a
// legitimate business decision, so the default is to warn, not reject.
type Policy struct {
	RejectUnderpricing bool
}

// PricedLine is one order line with its computed money amounts.
type PricedLine struct {
	ProductID   uuid.UUID
	Quantity    int
	CostPrice   decimal.Decimal
	SellPrice   decimal.Decimal
	LineCost    decimal.Decimal
	LineRevenue decimal.Decimal
}

// Result holds the priced lines and the order-level totals. All amounts are
// exact decimals; nothing here ever rounds.
type Result struct {
	Lines        []PricedLine
	TotalCost    decimal.Decimal
	TotalRevenue decimal.Decimal
	Profit       decimal.Decimal
	Warnings     []string
}

// Price computes per-line cost and revenue plus order totals for the given
// quotes. Every line must have exactly one quote. Negative prices are always
// rejected; sell < cost is rejected or warned about depending on policy.
func Price(lines []models.OrderLine, quotes map[uuid.UUID]Quote, policy Policy) (Result, error) {
	var res Result

	if len(quotes) != len(lines) {
		return res, fmt.Errorf("%w: %d quotes for %d lines", ErrMissingQuote, len(quotes), len(lines))
	}

	for _, line := range lines {
		quote, ok := quotes[line.ProductID]
		if !ok {
			return res, fmt.Errorf("%w: no quote for product %s", ErrMissingQuote, line.ProductID)
		}

		if quote.Cost.IsNegative() || quote.Sell.IsNegative() {
			return res, fmt.Errorf("%w: negative price for product %s", ErrInvalidPricing, line.ProductID)
		}

		if quote.Sell.LessThan(quote.Cost) {
			if policy.RejectUnderpricing {
				return res, fmt.Errorf("%w: product %s sells at %s against cost %s",
					ErrInvalidPricing, line.ProductID, quote.Sell, quote.Cost)
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"product %s priced below cost: sell=%s cost=%s", line.ProductID, quote.Sell, quote.Cost))
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		priced := PricedLine{
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			CostPrice:   quote.Cost,
			SellPrice:   quote.Sell,
			LineCost:    quote.Cost.Mul(qty),
			LineRevenue: quote.Sell.Mul(qty),
		}

		res.Lines = append(res.Lines, priced)
		res.TotalCost = res.TotalCost.Add(priced.LineCost)
		res.TotalRevenue = res.TotalRevenue.Add(priced.LineRevenue)
	}

	res.Profit = res.TotalRevenue.Sub(res.TotalCost)
	return res, nil
}

// Totals recomputes the order totals from prices already stored on the lines.
// Used for profit analytics on completed orders.
func Totals(lines []models.OrderLine) (Result, error) {
	quotes := make(map[uuid.UUID]Quote, len(lines))
	for _, line := range lines {
		if !line.Priced() {
			return Result{}, fmt.Errorf("%w: product %s", ErrUnpricedLine, line.ProductID)
		}
		quotes[line.ProductID] = Quote{Cost: *line.CostPrice, Sell: *line.SellPrice}
	}
	return Price(lines, quotes, Policy{})
}
