package repo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"tagsmith/internal/credstore"
	"tagsmith/internal/logging"
)

const (
	// refreshLeeway renews before actual expiry to tolerate clock skew and
	// in-flight requests.
	refreshLeeway = 120 * time.Second
	// refreshMinInterval prevents renewal storms when expiry has already
	// passed and multiple requests arrive concurrently.
	refreshMinInterval = 30 * time.Second

	renewPath = "@login-renew"
)

// DecodeExpiry extracts the exp claim from a JWT-shaped credential without
// verifying anything. The result is a scheduling hint only, never a trust
// decision. Malformed input yields (0, false) rather than an error.
func DecodeExpiry(token string) (int64, bool) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return 0, false
	}
	segment := parts[1]
	if pad := len(segment) % 4; pad != 0 {
		segment += strings.Repeat("=", 4-pad)
	}
	decoded, err := base64.URLEncoding.DecodeString(segment)
	if err != nil {
		return 0, false
	}
	var payload struct {
		Exp *int64 `json:"exp"`
	}
	if err := json.Unmarshal(decoded, &payload); err != nil || payload.Exp == nil {
		return 0, false
	}
	return *payload.Exp, true
}

// ShouldRefresh reports whether the held session is due for proactive renewal.
func ShouldRefresh(session *credstore.Session, now time.Time) bool {
	if session == nil || session.Expiry == nil {
		return false
	}
	if *session.Expiry-int64(refreshLeeway.Seconds()) > now.Unix() {
		return false
	}
	return now.Unix()-session.UpdatedAt >= int64(refreshMinInterval.Seconds())
}

// Renew exchanges the current bearer credential for a fresh one. On success
// the whole session is replaced and persisted, and the new token is returned.
// On any failure the existing session is left untouched and ok is false;
// callers continue with the stale token rather than failing the in-flight
// request.
func (c *Client) Renew(ctx context.Context) (string, bool) {
	session := c.creds.Session()
	if session == nil || session.Token == "" {
		return "", false
	}
	base := c.creds.Base()
	renewURL := ResolveURL(renewPath, base)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, renewURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("token renewal failed", logging.Error(err))
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("token renewal rejected", logging.Int("status", resp.StatusCode))
		return "", false
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Token == "" {
		return "", false
	}

	renewed := credstore.Session{
		Mode:      credstore.SessionModeToken,
		Token:     payload.Token,
		UpdatedAt: c.now().Unix(),
		Username:  session.Username,
	}
	if exp, ok := DecodeExpiry(payload.Token); ok {
		renewed.Expiry = &exp
	}
	if err := c.creds.SetSession("", renewed); err != nil {
		c.logger.Warn("persist renewed session", logging.Error(err))
	}
	c.logger.Debug("token renewed", logging.Bool("expiry_known", renewed.Expiry != nil))
	return payload.Token, true
}

// bearerToken returns the Authorization value for the current session,
// renewing first when the token is due (refresh-then-send). A failed renewal
// falls back to the stale token.
func (c *Client) bearerToken(ctx context.Context) (string, bool) {
	session := c.creds.Session()
	if session == nil || session.Mode != credstore.SessionModeToken || session.Token == "" {
		return "", false
	}
	if ShouldRefresh(session, c.now()) {
		if renewed, ok := c.Renew(ctx); ok {
			return renewed, true
		}
	}
	return session.Token, true
}
