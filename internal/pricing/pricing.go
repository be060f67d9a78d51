package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
)

// Shipping zones, matched against Address.City.
const (
	ZoneInsideDhaka  = "Inside Dhaka"
	ZoneOutsideDhaka = "Outside Dhaka"
)

var ErrUnknownZone = apperr.New(apperr.Validation, "unknown shipping zone")

var hundred = decimal.NewFromInt(100)

// Fees maps a shipping zone to its flat fee.
type Fees map[string]decimal.Decimal

// DefaultFees are the stock zone fees.
func DefaultFees() Fees {
	return Fees{
		ZoneInsideDhaka:  decimal.NewFromInt(80),
		ZoneOutsideDhaka: decimal.NewFromInt(150),
	}
}

// Fee returns the flat fee for zone, or ErrUnknownZone.
func (f Fees) Fee(zone string) (decimal.Decimal, error) {
	fee, ok := f[zone]
	if !ok {
		return decimal.Zero, ErrUnknownZone
	}
	return fee, nil
}

// Quote is the priced form of one store group.
type Quote struct {
	StoreID     string
	Items       []cart.Item
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	ShippingFee decimal.Decimal
	Total       decimal.Decimal
}

// Engine prices partitioned carts.
type Engine struct {
	Fees Fees
}

// NewEngine returns an Engine using fees, or DefaultFees when fees is nil.
func NewEngine(fees Fees) *Engine {
	if fees == nil {
		fees = DefaultFees()
	}
	return &Engine{Fees: fees}
}

// Price quotes each group in order. The shipping fee for zone is charged once, on
// the first group. discountPct is a percentage in [0, 100].
func (e *Engine) Price(groups []cart.Group, discountPct decimal.Decimal, zone string) ([]Quote, error) {
	fee, err := e.Fees.Fee(zone)
	if err != nil {
		return nil, err
	}

	quotes := make([]Quote, 0, len(groups))
	shippingCharged := false
	for _, g := range groups {
		subtotal := decimal.Zero
		for _, it := range g.Items {
			subtotal = subtotal.Add(it.LineTotal())
		}
		shipping := decimal.Zero
		if !shippingCharged {
			shipping = fee
			shippingCharged = true
		}

		// Only the final amount is rounded; Discount is whatever makes the
		// stored columns add up.
		total := Round(subtotal.Sub(subtotal.Mul(discountPct).Div(hundred)).Add(shipping))
		rounded := Round(subtotal)
		quotes = append(quotes, Quote{
			StoreID:     g.StoreID,
			Items:       g.Items,
			Subtotal:    rounded,
			Discount:    rounded.Add(shipping).Sub(total),
			ShippingFee: shipping,
			Total:       total,
		})
	}
	return quotes, nil
}

// Round rounds half away from zero to two decimals.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// GrandTotal sums the quote totals.
func GrandTotal(quotes []Quote) decimal.Decimal {
	sum := decimal.Zero
	for _, q := range quotes {
		sum = sum.Add(q.Total)
	}
	return sum
}
