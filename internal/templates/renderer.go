// Package templates is the variable-substitution engine behind vendor
// emails and confirmation messages. No control flow, only token
// replacement; unmatched tokens stay verbatim so a malformed template is
// visibly wrong instead of silently corrupted.
package templates

import (
	"fmt"
	"strings"

	"quote-service/internal/models"
	"quote-service/internal/pricing"
)

// Supported tokens
const (
	TokenLabName     = "{{lab_name}}"
	TokenQuoteNumber = "{{quote_number}}"
	TokenQuoteItems  = "{{quote_items}}"
	TokenTotal       = "{{total}}"
)

// Variables carries the values substituted into a template. QuoteItems is a
// pre-rendered block, not a caller-supplied token value.
type Variables struct {
	LabName     string
	QuoteNumber string
	QuoteItems  string
	Total       string
}

// Rendered is the output of a render pass
type Rendered struct {
	Subject string
	Body    string
}

// Render substitutes tokens in subject and body. Rendering is idempotent:
// tokens are consumed on the first pass, so rendering the output again with
// the same variables is a no-op.
func Render(tpl *models.EmailTemplate, vars Variables) Rendered {
	r := strings.NewReplacer(
		TokenLabName, vars.LabName,
		TokenQuoteNumber, vars.QuoteNumber,
		TokenQuoteItems, vars.QuoteItems,
		TokenTotal, vars.Total,
	)
	return Rendered{
		Subject: r.Replace(tpl.Subject),
		Body:    r.Replace(tpl.Body),
	}
}

// BuildQuoteItemsBlock renders the {{quote_items}} block from a pricing
// snapshot so the email carries point-in-time line totals
func BuildQuoteItemsBlock(items []models.QuoteItem, result *pricing.Result) string {
	var b strings.Builder
	for i, it := range items {
		lineTotal := int64(0)
		if i < len(result.PerItemCents) {
			lineTotal = result.PerItemCents[i]
		}
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%s</td></tr>\n",
			htmlEscape(it.ProductName),
			htmlEscape(it.SampleName),
			it.AdditionalSamples,
			it.AdditionalReportHeaders,
			pricing.FormatUSD(lineTotal))
	}
	fmt.Fprintf(&b, "<tr><td colspan=\"4\">Subtotal</td><td>%s</td></tr>\n", pricing.FormatUSD(result.SubtotalCents))
	fmt.Fprintf(&b, "<tr><td colspan=\"4\">Discount (%s%%)</td><td>-%s</td></tr>\n",
		result.DiscountPercent.String(), pricing.FormatUSD(result.DiscountAmountCents))
	return b.String()
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func htmlEscape(s string) string {
	return htmlEscaper.Replace(s)
}
