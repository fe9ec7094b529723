// Package pricing turns a quote's line items into a subtotal, discount and
// grand total. All amounts are integer cents; percent math goes through
// decimal so totals stay exact.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"quote-service/internal/models"
)

const (
	// SampleChargeCents is the surcharge per additional sample
	SampleChargeCents int64 = 6000
	// HeaderChargeCents is the surcharge per additional report header
	HeaderChargeCents int64 = 3000
	// DiscountThresholdCents is the subtotal at which the higher discount
	// tier starts, inclusive
	DiscountThresholdCents int64 = 120000
)

// sampleChargeCompounds gates the per-sample surcharge. The charge applies
// on every surface only when the compound name matches one of these,
// case-insensitively.
var sampleChargeCompounds = []string{"tirzepatide", "semaglutide", "retatrutide"}

// Item is one line of a quote as the engine sees it
type Item struct {
	CompoundName      string
	BasePriceCents    int64
	AdditionalSamples int
	AdditionalHeaders int
}

// Result is a point-in-time pricing snapshot
type Result struct {
	SubtotalCents       int64
	DiscountPercent     decimal.Decimal
	DiscountAmountCents int64
	GrandTotalCents     int64
	PerItemCents        []int64
}

// ItemFromModel maps a stored quote item into a pricing line. A nil price
// contributes zero until the lab sets it.
func ItemFromModel(qi *models.QuoteItem) Item {
	it := Item{
		CompoundName:      qi.ProductName,
		AdditionalSamples: qi.AdditionalSamples,
		AdditionalHeaders: qi.AdditionalReportHeaders,
	}
	if qi.PriceCents != nil {
		it.BasePriceCents = *qi.PriceCents
	}
	return it
}

// SampleChargeApplies reports whether the compound qualifies for the
// per-sample surcharge
func SampleChargeApplies(compoundName string) bool {
	name := strings.ToLower(compoundName)
	for _, c := range sampleChargeCompounds {
		if strings.Contains(name, c) {
			return true
		}
	}
	return false
}

// ItemTotalCents prices a single line
func ItemTotalCents(it Item) int64 {
	total := it.BasePriceCents
	if SampleChargeApplies(it.CompoundName) {
		total += int64(it.AdditionalSamples) * SampleChargeCents
	}
	total += int64(it.AdditionalHeaders) * HeaderChargeCents
	return total
}

// Price computes the quote totals. When override is nil the tiered default
// discount applies: 5% below the threshold, 10% at or above it. The function
// is pure; callers snapshot the result for emails and summaries.
func Price(items []Item, override *decimal.Decimal) (*Result, error) {
	if override != nil {
		if override.IsNegative() || override.GreaterThan(decimal.NewFromInt(100)) {
			return nil, models.NewValidationError("discount_percent", "must be between 0 and 100")
		}
	}

	perItem := make([]int64, len(items))
	var subtotal int64
	for i, it := range items {
		perItem[i] = ItemTotalCents(it)
		subtotal += perItem[i]
	}

	pct := defaultDiscountPercent(subtotal)
	if override != nil {
		pct = *override
	}

	discount := decimal.NewFromInt(subtotal).
		Mul(pct).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()

	return &Result{
		SubtotalCents:       subtotal,
		DiscountPercent:     pct,
		DiscountAmountCents: discount,
		GrandTotalCents:     subtotal - discount,
		PerItemCents:        perItem,
	}, nil
}

func defaultDiscountPercent(subtotalCents int64) decimal.Decimal {
	if subtotalCents >= DiscountThresholdCents {
		return decimal.NewFromInt(10)
	}
	return decimal.NewFromInt(5)
}

// FormatUSD renders cents as a two-decimal dollar string for display and
// email snapshots
func FormatUSD(cents int64) string {
	return "$" + decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
