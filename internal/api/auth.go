package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/susu3304/lodestar-web/internal/logger"
	"github.com/susu3304/lodestar-web/internal/session"
)

var errInvalidToken = errors.New("invalid session token")

// handleAutoLogin logs in with the configured credentials and makes the new
// session the held one.
func (a *API) handleAutoLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if !a.config.CredentialsConfigured() {
		log.Warn("auto-login attempted without configured credentials")
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Credentials not configured",
		})
		return
	}

	result, resp, err := a.client.Login(ctx, a.config.Username, a.config.Password)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if resp.HTML {
		writeJSON(w, htmlStatus(resp.Status), map[string]any{"success": false, "error": resp.Field("error")})
		return
	}
	if result == nil {
		message := resp.Field("error")
		if message == "" {
			message = "Login failed"
		}
		log.Warn("lodestar login rejected", "status", resp.Status)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": message})
		return
	}

	s := session.Session{ID: result.SessionID, Username: a.config.Username}
	a.sessions.Set(s)

	token, err := a.issuer.Issue(s)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	log.Info("lodestar login succeeded", "username", a.config.Username)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": result.SessionID,
		"username":   a.config.Username,
		"uri_path":   result.URIPath,
		"token":      token,
	})
}

// resolveSession returns the session id for a request: explicit, then bearer
// token, then the held session. It writes the 401 itself and returns false
// when no session is available.
func (a *API) resolveSession(w http.ResponseWriter, r *http.Request, explicit string) (string, bool) {
	explicit = strings.TrimSpace(explicit)

	var fromToken string
	if explicit == "" {
		var err error
		fromToken, err = a.bearerSession(r)
		if err != nil {
			writeError(r.Context(), w, http.StatusUnauthorized, err.Error())
			return "", false
		}
	}

	sid, err := a.sessions.Resolve(explicit, fromToken)
	if err != nil {
		writeError(r.Context(), w, http.StatusUnauthorized, "Not logged in")
		return "", false
	}
	return sid, true
}

func (a *API) bearerSession(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return "", errInvalidToken
	}

	s, err := a.issuer.Parse(tokenString)
	if err != nil {
		logger.FromContext(r.Context()).Debug("rejected session token", "error", err)
		return "", errInvalidToken
	}
	return s.ID, nil
}

func htmlStatus(status int) int {
	if status < http.StatusBadRequest {
		return http.StatusBadGateway
	}
	return status
}
