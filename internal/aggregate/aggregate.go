package aggregate

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

type Party string

const (
	Borrower Party = "borrower"
	Seller   Party = "seller"
	Lender   Party = "lender"
)

var Parties = []Party{Borrower, Seller, Lender}

// The upstream groups transfer taxes by jurisdiction, which nests the
// per-party list up to two levels. Exactly two levels are flattened.
const taxFlattenDepth = 2

// Result is a decoded closing-cost calculation response.
type Result map[string]any

type LineItem struct {
	Name    string          `json:"name"`
	Meta    string          `json:"meta,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	Display string          `json:"display"`
}

type PartyAmounts struct {
	Borrower decimal.Decimal `json:"borrower"`
	Seller   decimal.Decimal `json:"seller"`
}

type Summary struct {
	SearchID string `json:"search_id,omitempty"`

	LoanPolicyPremium   PartyAmounts               `json:"loan_policy_premium"`
	OwnersPolicyPremium PartyAmounts               `json:"owners_policy_premium"`
	SimultaneousIssue   decimal.Decimal            `json:"simissue"`
	FullPremiums        map[string]decimal.Decimal `json:"full_premiums,omitempty"`

	TitleAgentFees map[Party][]LineItem `json:"title_agent_fees"`
	RecordingFees  []LineItem           `json:"recording_fees"`
	TransferTaxes  map[Party][]LineItem `json:"transfer_taxes"`

	BorrowerTotal decimal.Decimal `json:"borrower_total"`
	SellerTotal   decimal.Decimal `json:"seller_total"`
	LenderTotal   decimal.Decimal `json:"lender_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`

	// Formatted holds display strings for the totals, keyed like the JSON
	// total fields.
	Formatted map[string]string `json:"formatted"`

	HasPDF bool `json:"has_pdf"`

	// OvernestedTaxes counts transfer-tax entries still nested after the
	// two-level flatten. They contribute nothing to the totals.
	OvernestedTaxes int `json:"overnested_taxes"`
}

var labelPolicy = bluemonday.StrictPolicy()

// Aggregate decodes an upstream calculation result and summarises it.
func Aggregate(raw []byte) (*Summary, error) {
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode calculation result: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("calculation result is not a JSON object")
	}
	return Summarize(r), nil
}

// Summarize computes per-party totals and display groups. Totals are summed
// exactly and only formatted at the end.
func Summarize(r Result) *Summary {
	s := &Summary{
		SearchID:            stringValue(r["search_id"]),
		LoanPolicyPremium:   partyAmounts(r["loan_policy_premium"]),
		OwnersPolicyPremium: partyAmounts(r["owners_policy_premium"]),
		SimultaneousIssue:   amount(r["simissue"]),
		TitleAgentFees:      make(map[Party][]LineItem, len(Parties)),
		TransferTaxes:       make(map[Party][]LineItem, len(Parties)),
		RecordingFees:       []LineItem{},
		Formatted:           make(map[string]string),
	}

	for key, v := range r {
		if strings.HasPrefix(key, "full_") && strings.HasSuffix(key, "_premium") {
			if s.FullPremiums == nil {
				s.FullPremiums = make(map[string]decimal.Decimal)
			}
			s.FullPremiums[key] = amount(v)
		}
	}
	if pdf, ok := r["pdf"].(map[string]any); ok {
		s.HasPDF = stringValue(pdf["base64"]) != ""
	}

	for _, p := range Parties {
		s.TitleAgentFees[p] = titleFeeItems(party(r["title_agent_fees"], p))

		taxes, overnested := taxItems(party(r["transfer_taxes"], p))
		s.TransferTaxes[p] = taxes
		s.OvernestedTaxes += overnested
	}
	for _, item := range list(r["recording_fees"]) {
		fee, _ := item.(map[string]any)
		s.RecordingFees = append(s.RecordingFees, lineItem(fee, "type", "jur", "amount", "Recording Fee"))
	}

	s.BorrowerTotal = s.total(r, Borrower)
	s.SellerTotal = s.total(r, Seller)
	s.LenderTotal = s.total(r, Lender)
	s.GrandTotal = s.BorrowerTotal.Add(s.SellerTotal)

	s.Formatted["borrower_total"] = FormatUSD(s.BorrowerTotal)
	s.Formatted["seller_total"] = FormatUSD(s.SellerTotal)
	s.Formatted["lender_total"] = FormatUSD(s.LenderTotal)
	s.Formatted["grand_total"] = FormatUSD(s.GrandTotal)
	return s
}

// Total returns the amount owed by p: policy premiums, title agent fees and
// transfer taxes for that party, plus recording fees for the borrower only.
func Total(r Result, p Party) decimal.Decimal {
	return Summarize(r).totalFor(p)
}

func (s *Summary) totalFor(p Party) decimal.Decimal {
	switch p {
	case Borrower:
		return s.BorrowerTotal
	case Seller:
		return s.SellerTotal
	case Lender:
		return s.LenderTotal
	}
	return decimal.Zero
}

func (s *Summary) total(r Result, p Party) decimal.Decimal {
	total := amount(party(r["loan_policy_premium"], p)).
		Add(amount(party(r["owners_policy_premium"], p)))

	for _, fee := range s.TitleAgentFees[p] {
		total = total.Add(fee.Amount)
	}
	for _, tax := range s.TransferTaxes[p] {
		total = total.Add(tax.Amount)
	}
	if p == Borrower {
		for _, fee := range s.RecordingFees {
			total = total.Add(fee.Amount)
		}
	}
	return total
}

func titleFeeItems(v any) []LineItem {
	items := []LineItem{}
	for _, item := range list(v) {
		fee, _ := item.(map[string]any)
		name := stringValue(fee["FeeName"])
		if name == "" {
			name = stringValue(fee["VariableName"])
		}
		li := lineItem(fee, "", "MismoMap", "Amount", "Fee")
		if name != "" {
			li.Name = labelPolicy.Sanitize(name)
		}
		items = append(items, li)
	}
	return items
}

func taxItems(v any) ([]LineItem, int) {
	items := []LineItem{}
	overnested := 0
	for _, item := range flatten(list(v), taxFlattenDepth) {
		if _, nested := item.([]any); nested {
			overnested++
			continue
		}
		tax, _ := item.(map[string]any)
		items = append(items, lineItem(tax, "type", "jur", "amount", "Tax"))
	}
	return items, overnested
}

func lineItem(m map[string]any, nameKey, metaKey, amountKey, fallbackName string) LineItem {
	name := ""
	if nameKey != "" {
		name = stringValue(m[nameKey])
	}
	if name == "" {
		name = fallbackName
	}
	amt := amount(m[amountKey])
	return LineItem{
		Name:    labelPolicy.Sanitize(name),
		Meta:    labelPolicy.Sanitize(stringValue(m[metaKey])),
		Amount:  amt,
		Display: FormatUSD(amt),
	}
}

// flatten spreads nested lists into their parent up to depth levels. Lists
// found below that depth are kept as single items.
func flatten(items []any, depth int) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		if nested, ok := item.([]any); ok && depth > 0 {
			out = append(out, flatten(nested, depth-1)...)
			continue
		}
		out = append(out, item)
	}
	return out
}

func party(v any, p Party) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[string(p)]
}

func partyAmounts(v any) PartyAmounts {
	return PartyAmounts{
		Borrower: amount(party(v, Borrower)),
		Seller:   amount(party(v, Seller)),
	}
}

func list(v any) []any {
	l, _ := v.([]any)
	return l
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return decimal.NewFromFloat(t).String()
	}
	return ""
}
