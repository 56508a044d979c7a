package projector

import (
	"strings"
)

const (
	DefaultSearchType = "CFPB"
	DefaultPurpose    = "11"
)

// A rule produces the value for one optional key, or reports that the key
// must be left out of the payload.
type rule struct {
	key   string
	apply func(Fields) (any, bool)
}

// OutputOptions are the boolean output toggles; each is sent as 1 or omitted.
var OutputOptions = []string{
	"include_full_policy_amount",
	"include_section",
	"include_payee_info",
	"include_pdf",
	"include_seller_responsible",
	"include_property_tax",
	"include_appraisal",
	"include_encompass_mapping",
}

var optionalRules = []rule{
	{"filename", stringRule("filename")},
	{"address", stringRule("address")},
	{"close_date", stringRule("close_date")},

	{"prior_insurance", floatRule("prior_insurance")},
	{"exdebt", floatRule("exdebt")},
	{"prior_insurance_date", stringRule("prior_insurance_date")},

	{"loan_info", loanInfoRule},

	{"qst", mapRule("qst")},
	{"request_endos", endorsementsRule},
	{"doc_type", docTypeRule},
	{"app_mods", mapRule("app_mods")},

	{"client_id", intRule("client_id")},
	{"agent_id", intRule("agent_id")},

	{"loanpol_level", intRule("loanpol_level")},
	{"owners_level", intRule("owners_level")},

	{"int_name", stringRule("int_name")},
}

// Project builds the upstream calculation payload from caller input.
//
// Required fields are always present: loan_amount and purchase_price fall back
// to 0 when missing or unparsable. Optional fields are present only when the
// input carries a usable value; nothing is ever sent as null, "" or false.
func Project(in Fields) *Request {
	req := &Request{}

	for _, key := range []string{"state", "county", "township"} {
		s, _ := in.String(key)
		req.Set(key, s)
	}
	req.Set("search_type", stringOr(in, "search_type", DefaultSearchType))
	req.Set("purpose", stringOr(in, "purpose", DefaultPurpose))

	loanAmount, _ := in.Float("loan_amount")
	purchasePrice, _ := in.Float("purchase_price")
	req.Set("loan_amount", loanAmount)
	req.Set("purchase_price", purchasePrice)

	for _, r := range optionalRules {
		if v, ok := r.apply(in); ok {
			req.Set(r.key, v)
		}
	}
	for _, key := range OutputOptions {
		if in.Truthy(key) {
			req.Set(key, 1)
		}
	}
	return req
}

func stringOr(in Fields, key, fallback string) string {
	if s, ok := in.String(key); ok {
		return s
	}
	return fallback
}

func stringRule(key string) func(Fields) (any, bool) {
	return func(in Fields) (any, bool) {
		return in.String(key)
	}
}

func floatRule(key string) func(Fields) (any, bool) {
	return func(in Fields) (any, bool) {
		if !present(in[key]) {
			return nil, false
		}
		return in.Float(key)
	}
}

func intRule(key string) func(Fields) (any, bool) {
	return func(in Fields) (any, bool) {
		if !present(in[key]) {
			return nil, false
		}
		return in.Int(key)
	}
}

func mapRule(key string) func(Fields) (any, bool) {
	return func(in Fields) (any, bool) {
		return in.Map(key)
	}
}

// Loan info sub-fields. Integer codes are parsed; flags are sent as 1 or omitted.
var (
	loanInfoInts = []string{
		"prop_type",
		"loan_type",
		"amort_type",
		"prop_purpose",
		"prop_usage",
		"number_of_families",
	}
	loanInfoFlags = []string{
		"is_first_time_home_buyer",
		"is_federal_credit_union",
		"is_same_borrowers_as_previous",
		"is_same_lender_as_previous",
	}
)

// loanInfoRule passes a caller-supplied loan_info object through untouched;
// otherwise it assembles one from the flat sub-fields and omits it when empty.
func loanInfoRule(in Fields) (any, bool) {
	if explicit, ok := in.Map("loan_info"); ok {
		return explicit, true
	}

	info := NewObject()
	for _, key := range loanInfoInts {
		if !present(in[key]) {
			continue
		}
		if n, ok := in.Int(key); ok {
			info.Set(key, n)
		}
	}
	for _, key := range loanInfoFlags {
		if in.Truthy(key) {
			info.Set(key, 1)
		}
	}
	if info.Len() == 0 {
		return nil, false
	}
	return info, true
}

// endorsementsRule accepts a list or a comma-separated string of ids.
func endorsementsRule(in Fields) (any, bool) {
	var raw []any
	switch v := in["request_endos"].(type) {
	case []any:
		raw = v
	case string:
		for _, part := range strings.Split(v, ",") {
			raw = append(raw, part)
		}
	default:
		return nil, false
	}

	ids := make([]any, 0, len(raw))
	for _, item := range raw {
		if !present(item) {
			continue
		}
		if n, ok := toInt(item); ok {
			if f, _ := toFloat(item); f == float64(n) {
				ids = append(ids, n)
				continue
			}
		}
		if s, ok := toString(item); ok {
			ids = append(ids, strings.TrimSpace(s))
		}
	}
	if len(ids) == 0 {
		return nil, false
	}
	return ids, true
}

type docKind struct {
	name    string
	parties bool
}

// Document kinds recorded at closing. Deeds and mortgages also carry
// grantor and grantee counts.
var docKinds = []docKind{
	{name: "deed", parties: true},
	{name: "mort", parties: true},
	{name: "release"},
	{name: "assignment"},
}

// docTypeRule passes a caller-supplied doc_type object through; otherwise a
// kind is described only when <kind>_page_count is a positive integer.
func docTypeRule(in Fields) (any, bool) {
	if explicit, ok := in.Map("doc_type"); ok {
		return explicit, true
	}

	docs := NewObject()
	for _, kind := range docKinds {
		pages, ok := in.Int(kind.name + "_page_count")
		if !ok || pages <= 0 {
			continue
		}
		doc := NewObject()
		doc.Set("page_count", pages)
		doc.Set("num_count", countOrOne(in, kind.name+"_count"))
		if kind.parties {
			doc.Set("num_grantors", countOrOne(in, kind.name+"_grantors"))
			doc.Set("num_grantees", countOrOne(in, kind.name+"_grantees"))
		}
		docs.Set(kind.name, doc)
	}
	if docs.Len() == 0 {
		return nil, false
	}
	return docs, true
}

func countOrOne(in Fields, key string) int64 {
	if n, ok := in.Int(key); ok && n > 0 {
		return n
	}
	return 1
}
