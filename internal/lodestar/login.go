package lodestar

import (
	"context"
	"net/http"
	"net/url"
)

const loginEndpoint = "/Login/login.php"

// LoginResult holds the fields of a successful login.
type LoginResult struct {
	SessionID string
	URIPath   string
}

// Login posts the credentials form-encoded. The LoginResult is nil unless the
// upstream reported success and returned a session id; resp is always set when
// err is nil so callers can relay the upstream error.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, *Response, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	resp, err := c.Call(ctx, loginEndpoint, http.MethodPost, form, ContentTypeForm)
	if err != nil {
		return nil, nil, err
	}
	if !resp.OK || resp.HTML {
		return nil, resp, nil
	}

	sessionID := resp.Field("session_id")
	if sessionID == "" {
		return nil, resp, nil
	}
	return &LoginResult{SessionID: sessionID, URIPath: resp.Field("uri_path")}, resp, nil
}
