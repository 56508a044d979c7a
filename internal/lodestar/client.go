package lodestar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	json "github.com/goccy/go-json"
	"github.com/susu3304/lodestar-web/internal/logger"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

const (
	maxLoggedBody = 500
	maxTitleLen   = 120
)

// ErrHTMLPage marks a response whose body was an HTML document instead of JSON.
var ErrHTMLPage = errors.New("upstream returned an HTML error page")

// Client talks to one LodeStar tenant. It issues exactly one request per call
// and never retries.
type Client struct {
	tenantURL  string
	tenant     string
	httpClient *http.Client
}

// NewClient returns a client rooted at tenantURL (base URL plus client name).
// A nil httpClient uses http.DefaultClient.
func NewClient(tenantURL, tenant string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		tenantURL:  strings.TrimRight(tenantURL, "/"),
		tenant:     tenant,
		httpClient: httpClient,
	}
}

func (c *Client) Tenant() string { return c.tenant }

// Response is the classified outcome of an upstream call. Data always holds a
// JSON document: the upstream body, or a synthetic {"error": ...} object when
// the upstream answered with an HTML page.
type Response struct {
	OK     bool
	Status int
	Data   json.RawMessage
	HTML   bool
}

// Err returns ErrHTMLPage for HTML responses and nil otherwise.
func (r *Response) Err() error {
	if r.HTML {
		return ErrHTMLPage
	}
	return nil
}

// Field returns a top-level string field of Data, or "" if absent or not a string.
func (r *Response) Field(key string) string {
	var m map[string]any
	if err := json.Unmarshal(r.Data, &m); err != nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// Call performs a single request against endpoint (a path relative to the
// tenant URL, optionally with a query string). body is encoded as a form when
// contentType is ContentTypeForm and as JSON otherwise.
//
// Transport failures and non-JSON, non-HTML bodies are returned as errors.
func (c *Client) Call(ctx context.Context, endpoint, method string, body any, contentType string) (*Response, error) {
	reqURL := c.tenantURL + endpoint

	var reader io.Reader
	if body != nil {
		payload, err := encodeBody(body, contentType)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "lodestar-web/1.0")
	if body != nil {
		if contentType == ContentTypeForm {
			req.Header.Set("Content-Type", ContentTypeForm)
		} else {
			req.Header.Set("Content-Type", ContentTypeJSON)
		}
	}

	log := logger.FromContext(ctx).With("method", method, "endpoint", redactEndpoint(endpoint))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("lodestar request failed", "error", err)
		return nil, fmt.Errorf("lodestar request failed: %w", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("lodestar response read failed", "status", resp.StatusCode, "error", err)
		return nil, fmt.Errorf("read lodestar response: %w", err)
	}
	log = log.With("status", resp.StatusCode, "duration", time.Since(start).String())

	if isHTML(resp.Header.Get("Content-Type"), text) {
		title := pageTitle(text)
		log.Error("lodestar returned HTML error page", "title", title)
		return &Response{
			OK:     false,
			Status: resp.StatusCode,
			Data:   errorDocument(c.htmlErrorMessage(resp.StatusCode, title)),
			HTML:   true,
		}, nil
	}

	var probe any
	if err := json.Unmarshal(text, &probe); err != nil {
		log.Error("lodestar returned invalid JSON", "error", err)
		return nil, fmt.Errorf("invalid JSON from lodestar: %w", err)
	}

	log.Debug("lodestar response", "body", redactBody(text))
	return &Response{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Data:   json.RawMessage(bytes.TrimSpace(text)),
	}, nil
}

// Get issues a GET with params encoded into the query string.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return c.Call(ctx, endpoint, http.MethodGet, nil, "")
}

// htmlErrorMessage names the tenant for a 404 and otherwise reports the status,
// followed by the page title when the page has one.
func (c *Client) htmlErrorMessage(status int, title string) string {
	if status == http.StatusNotFound {
		return fmt.Sprintf("Client %q not found.", c.tenant)
	}
	msg := fmt.Sprintf("API returned an error page (HTTP %d)", status)
	if title != "" {
		msg += ": " + truncate(title, maxTitleLen)
	}
	return msg
}

func encodeBody(body any, contentType string) ([]byte, error) {
	if contentType != ContentTypeForm {
		return json.Marshal(body)
	}
	switch v := body.(type) {
	case url.Values:
		return []byte(v.Encode()), nil
	case map[string]string:
		values := url.Values{}
		for k, s := range v {
			values.Set(k, s)
		}
		return []byte(values.Encode()), nil
	}
	return nil, fmt.Errorf("form body must be url.Values or map[string]string, got %T", body)
}

// isHTML trusts an explicit text/html Content-Type, and otherwise sniffs the
// body since the upstream does not label its error pages reliably.
func isHTML(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "text/html" {
		return true
	}
	head := bytes.TrimLeft(body, " \t\r\n\ufeff")
	if len(head) > 16 {
		head = head[:16]
	}
	lower := strings.ToLower(string(head))
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}

func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func errorDocument(message string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"error": message})
	return b
}

// redactEndpoint hides session ids before an endpoint is logged.
func redactEndpoint(endpoint string) string {
	path, rawQuery, found := strings.Cut(endpoint, "?")
	if !found {
		return endpoint
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return path
	}
	if q.Has("session_id") {
		q.Set("session_id", "redacted")
	}
	return path + "?" + q.Encode()
}

// redactBody renders a response body for the debug log with any top-level
// session_id replaced.
func redactBody(text []byte) string {
	var m map[string]any
	if err := json.Unmarshal(text, &m); err == nil {
		if _, ok := m["session_id"]; ok {
			m["session_id"] = "redacted"
			if b, err := json.Marshal(m); err == nil {
				text = b
			}
		}
	}
	return truncate(string(text), maxLoggedBody)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
