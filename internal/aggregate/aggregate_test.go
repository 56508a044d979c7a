package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustAggregate(t *testing.T, raw string) *Summary {
	t.Helper()
	s, err := Aggregate([]byte(raw))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	return s
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestAggregatePartyTotals(t *testing.T) {
	s := mustAggregate(t, `{
		"loan_policy_premium": {"borrower": 100, "seller": 0},
		"owners_policy_premium": {"borrower": 50, "seller": 0},
		"title_agent_fees": {"borrower": [{"Amount": 25}]},
		"recording_fees": [{"amount": 10}],
		"transfer_taxes": {"borrower": [[{"amount": 5}, {"amount": 3}]]}
	}`)

	assertDecimal(t, "BorrowerTotal", s.BorrowerTotal, "193")
	assertDecimal(t, "SellerTotal", s.SellerTotal, "0")
	assertDecimal(t, "LenderTotal", s.LenderTotal, "0")
	assertDecimal(t, "GrandTotal", s.GrandTotal, "193")

	if got := s.Formatted["borrower_total"]; got != "$193.00" {
		t.Errorf("formatted borrower_total = %q", got)
	}
	if len(s.TransferTaxes[Borrower]) != 2 {
		t.Errorf("borrower taxes = %d items, want 2", len(s.TransferTaxes[Borrower]))
	}
}

func TestRecordingFeesAreBorrowerOnly(t *testing.T) {
	s := mustAggregate(t, `{
		"recording_fees": [{"type": "Deed", "jur": "County", "amount": 120.5}, {"amount": "79.50"}],
		"transfer_taxes": {"seller": [{"amount": 1000}], "lender": [{"amount": 12}]}
	}`)

	assertDecimal(t, "BorrowerTotal", s.BorrowerTotal, "200")
	assertDecimal(t, "SellerTotal", s.SellerTotal, "1000")
	assertDecimal(t, "LenderTotal", s.LenderTotal, "12")
	assertDecimal(t, "GrandTotal", s.GrandTotal, "1200")

	if s.RecordingFees[0].Name != "Deed" || s.RecordingFees[0].Meta != "County" {
		t.Errorf("recording fee = %+v", s.RecordingFees[0])
	}
	if s.RecordingFees[1].Name != "Recording Fee" {
		t.Errorf("default recording fee name = %q", s.RecordingFees[1].Name)
	}
}

func TestTransferTaxFlattenDepth(t *testing.T) {
	tests := []struct {
		name           string
		taxes          string
		wantTotal      string
		wantOvernested int
	}{
		{"flat list", `[{"amount": 5}, {"amount": 3}]`, "8", 0},
		{"one level", `[[{"amount": 5}], [{"amount": 3}]]`, "8", 0},
		{"two levels", `[[[{"amount": 5}, {"amount": 3}]], {"amount": 1}]`, "9", 0},
		{"beyond depth", `[[[[{"amount": 7}]]], {"amount": 2}]`, "2", 1},
		{"missing", `null`, "0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustAggregate(t, `{"transfer_taxes": {"seller": `+tt.taxes+`}}`)
			assertDecimal(t, "SellerTotal", s.SellerTotal, tt.wantTotal)
			if s.OvernestedTaxes != tt.wantOvernested {
				t.Errorf("OvernestedTaxes = %d, want %d", s.OvernestedTaxes, tt.wantOvernested)
			}
		})
	}
}

func TestAmountsDefaultToZero(t *testing.T) {
	s := mustAggregate(t, `{
		"loan_policy_premium": {"borrower": "n/a"},
		"owners_policy_premium": null,
		"title_agent_fees": {"borrower": [{"FeeName": "Settlement"}, {"Amount": true}, null, {"Amount": "12.25"}]},
		"recording_fees": "none"
	}`)

	assertDecimal(t, "BorrowerTotal", s.BorrowerTotal, "12.25")
	fees := s.TitleAgentFees[Borrower]
	if len(fees) != 4 {
		t.Fatalf("title fees = %d, want 4", len(fees))
	}
	if fees[0].Name != "Settlement" || !fees[0].Amount.IsZero() {
		t.Errorf("fee[0] = %+v", fees[0])
	}
	if fees[2].Name != "Fee" {
		t.Errorf("null fee name = %q, want Fee", fees[2].Name)
	}
}

func TestNoRoundingDrift(t *testing.T) {
	s := mustAggregate(t, `{"title_agent_fees": {"borrower": [
		{"Amount": 0.1}, {"Amount": 0.2}, {"Amount": 0.1}, {"Amount": 0.2}, {"Amount": 0.1},
		{"Amount": 0.2}, {"Amount": 0.1}, {"Amount": 0.2}, {"Amount": 0.1}, {"Amount": 0.2}
	]}}`)
	assertDecimal(t, "BorrowerTotal", s.BorrowerTotal, "1.5")
}

func TestSummaryDetails(t *testing.T) {
	s := mustAggregate(t, `{
		"search_id": 98765,
		"simissue": 25,
		"full_loan_policy_premium": 1200,
		"full_owners_policy_premium": "900.10",
		"pdf": {"base64": "JVBERi0x"},
		"loan_policy_premium": {"borrower": 10, "seller": 20},
		"title_agent_fees": {
			"borrower": [{"VariableName": "<b>Closing</b> Fee", "MismoMap": "SettlementFee", "Amount": 1500}],
			"seller": [{"FeeName": "Courier", "Amount": 50}]
		}
	}`)

	if s.SearchID != "98765" {
		t.Errorf("SearchID = %q", s.SearchID)
	}
	if !s.HasPDF {
		t.Error("HasPDF = false")
	}
	assertDecimal(t, "SimultaneousIssue", s.SimultaneousIssue, "25")
	assertDecimal(t, "full_owners_policy_premium", s.FullPremiums["full_owners_policy_premium"], "900.10")
	assertDecimal(t, "LoanPolicyPremium.Seller", s.LoanPolicyPremium.Seller, "20")

	fee := s.TitleAgentFees[Borrower][0]
	if fee.Name != "Closing Fee" || fee.Meta != "SettlementFee" || fee.Display != "$1,500.00" {
		t.Errorf("fee = %+v", fee)
	}
	assertDecimal(t, "SellerTotal", s.SellerTotal, "70")
	if s.TitleAgentFees[Lender] == nil || len(s.TitleAgentFees[Lender]) != 0 {
		t.Errorf("lender bucket = %#v, want empty list", s.TitleAgentFees[Lender])
	}
}

func TestTotalMatchesSummary(t *testing.T) {
	r := Result{
		"loan_policy_premium": map[string]any{"borrower": float64(100)},
		"recording_fees":      []any{map[string]any{"amount": float64(10)}},
	}
	assertDecimal(t, "Total(borrower)", Total(r, Borrower), "110")
	assertDecimal(t, "Total(seller)", Total(r, Seller), "0")
}

func TestAggregateRejectsNonObject(t *testing.T) {
	for _, raw := range []string{`[]`, `null`, `not json`} {
		if _, err := Aggregate([]byte(raw)); err == nil {
			t.Errorf("Aggregate(%s) expected error", raw)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"193", "193.00"},
		{"1234.5", "1,234.50"},
		{"1234567.891", "1,234,567.89"},
		{"999.995", "1,000.00"},
	}
	for _, tt := range tests {
		if got := Format(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("Format(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatUSD(decimal.RequireFromString("-12.5")); got != "-$12.50" {
		t.Errorf("FormatUSD(-12.5) = %q", got)
	}
}
