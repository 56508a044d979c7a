package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/susu3304/lodestar-web/internal/aggregate"
	"github.com/susu3304/lodestar-web/internal/lodestar"
	"github.com/susu3304/lodestar-web/internal/logger"
	"github.com/susu3304/lodestar-web/internal/projector"
)

const maxBodyBytes = 4 << 20

// lookupSpec describes a read endpoint that forwards query parameters to one
// upstream script.
type lookupSpec struct {
	endpoint string
	required []string
	// flags are forwarded as 1 only when the caller sent exactly "1"
	flags    []string
	defaults map[string]func() string
}

var (
	countiesLookup = lookupSpec{
		endpoint: "/counties.php",
		required: []string{"state"},
	}
	townshipsLookup = lookupSpec{
		endpoint: "/townships.php",
		required: []string{"state", "county"},
	}
	geocodeLookup = lookupSpec{
		endpoint: "/geocode_check.php",
		required: []string{"state", "county", "township", "address"},
	}
	questionsLookup = lookupSpec{
		endpoint: "/questions.php",
		required: []string{"state", "purpose"},
	}
	endorsementsLookup = lookupSpec{
		endpoint: "/endorsements.php",
		required: []string{"state", "county", "purpose"},
	}
	subAgentsLookup = lookupSpec{
		endpoint: "/sub_agents.php",
		required: []string{"state", "county", "purpose"},
		flags:    []string{"include_contact_info"},
	}
	appraisalModifiersLookup = lookupSpec{
		endpoint: "/appraisal_modifiers.php",
		required: []string{"state", "county"},
	}
	propertyTaxLookup = lookupSpec{
		endpoint: "/property_tax.php",
		required: []string{"state", "county", "city", "address"},
		defaults: map[string]func() string{
			"close_date":     func() string { return time.Now().Format("2006-01-02") },
			"file_name":      func() string { return "WebApp" },
			"purchase_price": func() string { return "0" },
		},
	}
	searchResultsLookup = lookupSpec{
		endpoint: "/closing_cost_calculations.php",
		required: []string{"file_name"},
		flags:    []string{"include_full_policy_amount", "include_pdf", "include_encompass_mapping"},
	}
)

// lookup builds the handler for a read endpoint. The session is checked
// first, then required parameters; neither failure reaches the upstream.
func (a *API) lookup(spec lookupSpec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		in, err := requestParams(r)
		if err != nil {
			writeError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}

		sid, ok := a.resolveSession(w, r, in.Get("session_id"))
		if !ok {
			return
		}

		var missing []string
		for _, key := range spec.required {
			if strings.TrimSpace(in.Get(key)) == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			writeError(ctx, w, http.StatusBadRequest, "Missing required parameters: "+strings.Join(missing, ", "))
			return
		}

		params := url.Values{}
		params.Set("session_id", sid)
		for _, key := range spec.required {
			params.Set(key, in.Get(key))
		}
		for key, def := range spec.defaults {
			if v := in.Get(key); v != "" {
				params.Set(key, v)
			} else {
				params.Set(key, def())
			}
		}
		for _, flag := range spec.flags {
			if in.Get(flag) == "1" {
				params.Set(flag, "1")
			}
		}

		resp, err := a.client.Get(ctx, spec.endpoint, params)
		if err != nil {
			writeError(ctx, w, http.StatusInternalServerError, err.Error())
			return
		}
		writeUpstream(w, resp)
	}
}

// handleClosingCosts projects the caller's fields into a calculation request
// and relays the upstream result unchanged.
func (a *API) handleClosingCosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	fields, err := bodyFields(r)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	explicit, _ := fields.String("session_id")
	sid, ok := a.resolveSession(w, r, explicit)
	if !ok {
		return
	}

	var missing []string
	for _, key := range []string{"state", "county", "township"} {
		if _, ok := fields.String(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		writeError(ctx, w, http.StatusBadRequest, "Missing required parameters: "+strings.Join(missing, ", "))
		return
	}

	req := projector.Project(fields)
	if body, err := json.Marshal(req); err == nil {
		log.Debug("closing cost request", "body", string(body))
	}
	req.SessionID = sid

	resp, err := a.client.Call(ctx, "/closing_cost_calculations.php", http.MethodPost, req, lodestar.ContentTypeJSON)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}
	writeUpstream(w, resp)
}

// handleClosingCostSummary aggregates an upstream calculation result supplied
// in the request body into per-party totals and display groups.
func (a *API) handleClosingCostSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "failed to read request body")
		return
	}

	summary, err := aggregate.Aggregate(raw)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	if summary.OvernestedTaxes > 0 {
		logger.FromContext(ctx).Warn("transfer taxes nested deeper than expected; entries excluded from totals",
			"count", summary.OvernestedTaxes, "search_id", summary.SearchID)
	}

	writeJSON(w, http.StatusOK, summary)
}

// requestParams merges the query string with a POST body, which may be a form
// or a flat JSON object.
func requestParams(r *http.Request) (url.Values, error) {
	params := r.URL.Query()
	if r.Method != http.MethodPost || r.Body == nil {
		return params, nil
	}

	if isJSON(r) {
		fields, err := decodeJSONBody(r)
		if err != nil {
			return nil, err
		}
		for k, v := range fields {
			if params.Get(k) != "" {
				continue
			}
			if b, isBool := v.(bool); isBool {
				if b {
					params.Set(k, "1")
				}
				continue
			}
			if s, ok := fields.String(k); ok {
				params.Set(k, s)
			}
		}
		return params, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	for k, vs := range r.PostForm {
		if params.Get(k) == "" && len(vs) > 0 {
			params.Set(k, vs[0])
		}
	}
	return params, nil
}

// bodyFields reads calculation input from a JSON object or a form body.
func bodyFields(r *http.Request) (projector.Fields, error) {
	if isJSON(r) {
		return decodeJSONBody(r)
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	return projector.FromValues(r.PostForm), nil
}

func decodeJSONBody(r *http.Request) (projector.Fields, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return projector.Fields{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("invalid request body: %v", err)
	}
	return projector.FromMap(m), nil
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && (mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"))
}
