package server

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FreedomSnow/sinoname/internal/cookie"
	"github.com/FreedomSnow/sinoname/internal/crypto"
	"github.com/FreedomSnow/sinoname/internal/idp"
	jsonwriter "github.com/FreedomSnow/sinoname/internal/json"
	"github.com/FreedomSnow/sinoname/internal/log"
	"github.com/FreedomSnow/sinoname/internal/session"
	"github.com/FreedomSnow/sinoname/internal/storage"
)

// callbackTimeout bounds the outbound calls made during the callback
// (code exchange and userinfo fetch).
const callbackTimeout = 30 * time.Second

// defaultTokenLifetime is used when the provider doesn't report an
// access token expiry.
const defaultTokenLifetime = time.Hour

// Callback error codes surfaced to the browser via the error page
// redirect. Each failure mode keeps its own code so the frontend can
// explain what happened. Provider-reported errors pass their original
// code through instead.
const (
	errInvalidState = "invalid_state"
	errNoCode       = "no_code"
	errInvalidGrant = "invalid_grant"
	errServerError  = "server_error"
)

// AuthHandlers implements the browser login flow: starting the OAuth
// redirect, handling the provider callback, and serving session state.
type AuthHandlers struct {
	provider idp.Provider
	codec    *session.Codec
	store    storage.Storage

	successURL string
	errorURL   string
}

// NewAuthHandlers creates the auth handler set. successURL and errorURL
// are the absolute browser destinations after a callback.
func NewAuthHandlers(provider idp.Provider, codec *session.Codec, store storage.Storage, successURL, errorURL string) *AuthHandlers {
	return &AuthHandlers{
		provider:   provider,
		codec:      codec,
		store:      store,
		successURL: successURL,
		errorURL:   errorURL,
	}
}

type loginResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirectUrl"`
}

// LoginHandler starts a login attempt: it binds a fresh CSRF state to the
// browser via a short-lived cookie and returns the provider URL to
// redirect to.
func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Use POST")
		return
	}

	state, err := crypto.GenerateSecureToken()
	if err != nil {
		log.LogError("Failed to generate login state: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to start login")
		return
	}

	cookie.SetState(w, state)

	h.recordEvent(r, storage.AuthEvent{Kind: storage.EventLoginStarted})

	_ = jsonwriter.Write(w, loginResponse{
		Success:     true,
		RedirectURL: h.provider.AuthURL(state),
	})
}

// CallbackHandler completes a login attempt. Checks run in a fixed
// order: provider error, state match, code presence, code exchange,
// profile fetch. The state cookie is consumed on every exit path.
func (h *AuthHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// Provider-reported errors short-circuit before anything else.
	// The provider's own code (e.g. access_denied) passes through so
	// the frontend and support see what the provider actually said.
	if providerErr := query.Get("error"); providerErr != "" {
		h.recordEvent(r, storage.AuthEvent{
			Kind:   storage.EventProviderDenied,
			Detail: providerErr,
		})
		h.redirectError(w, r, providerErr, query.Get("error_description"))
		return
	}

	// The state in the query must match the cookie bound to this browser
	expectedState, err := cookie.GetState(r)
	if err != nil || expectedState == "" || query.Get("state") != expectedState {
		log.LogWarnWithFields("auth", "State mismatch on callback", map[string]any{
			"ip":         clientIP(r),
			"user_agent": r.UserAgent(),
			"has_cookie": err == nil,
		})
		h.recordEvent(r, storage.AuthEvent{Kind: storage.EventStateMismatch})
		h.redirectError(w, r, errInvalidState, "State parameter does not match")
		return
	}

	code := query.Get("code")
	if code == "" {
		h.redirectError(w, r, errNoCode, "No authorization code received")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), callbackTimeout)
	defer cancel()

	token, err := h.provider.ExchangeCode(ctx, code)
	if err != nil {
		log.LogError("Code exchange failed: %v", err)
		h.recordEvent(r, storage.AuthEvent{Kind: storage.EventExchangeFailed})
		h.redirectError(w, r, errInvalidGrant, "Authorization code rejected")
		return
	}

	identity, err := h.provider.UserInfo(ctx, token)
	if err != nil {
		log.LogError("Failed to fetch user profile: %v", err)
		h.redirectError(w, r, errServerError, "Failed to fetch user profile")
		return
	}

	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(defaultTokenLifetime)
	}

	record := session.NewRecord(identity, token.AccessToken, expiry)
	sealed, err := h.codec.Encode(record)
	if err != nil {
		log.LogError("Failed to seal session: %v", err)
		h.redirectError(w, r, errServerError, "Failed to create session")
		return
	}

	if err := h.store.UpsertUser(ctx, storage.UserUpsert{
		ID:       identity.Subject,
		Provider: identity.ProviderType,
		Email:    identity.Email,
		Name:     identity.Name,
		Picture:  identity.Picture,
		Domain:   identity.Domain,
	}); err != nil {
		// The login itself succeeded, don't fail it over bookkeeping
		log.LogError("Failed to upsert user %s: %v", identity.Email, err)
	}
	h.recordEvent(r, storage.AuthEvent{
		Kind:  storage.EventLoginSucceeded,
		Email: identity.Email,
	})

	cookie.ClearState(w)
	cookie.SetSession(w, sealed, record.TTL(time.Now()))

	log.LogInfoWithFields("auth", "User logged in", map[string]any{
		"email":    identity.Email,
		"provider": identity.ProviderType,
	})

	http.Redirect(w, r, h.successURL, http.StatusFound)
}

type sessionResponse struct {
	User      session.User `json:"user"`
	ExpiresAt int64        `json:"expiresAt"`
}

// SessionHandler returns the current session's user, or 401 when there
// is no usable session. Broken and expired cookies are cleared.
func (h *AuthHandlers) SessionHandler(w http.ResponseWriter, r *http.Request) {
	value, err := cookie.GetSession(r)
	if err != nil {
		jsonwriter.WriteUnauthorized(w, "Not logged in")
		return
	}

	record, err := h.codec.Decode(value)
	if err != nil {
		cookie.ClearSession(w)
		jsonwriter.WriteUnauthorized(w, "Invalid session")
		return
	}

	if record.IsExpired(time.Now()) {
		cookie.ClearSession(w)
		jsonwriter.WriteUnauthorized(w, "Session expired")
		return
	}

	_ = jsonwriter.Write(w, sessionResponse{
		User:      record.User,
		ExpiresAt: record.ExpiresAt,
	})
}

// LogoutHandler clears the session cookie. Logging out without a
// session succeeds the same way, so the handler is idempotent.
func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonwriter.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Use POST")
		return
	}

	if value, err := cookie.GetSession(r); err == nil {
		if record, err := h.codec.Decode(value); err == nil {
			h.recordEvent(r, storage.AuthEvent{
				Kind:  storage.EventLogout,
				Email: record.User.Email,
			})
		}
	}

	cookie.ClearSession(w)
	_ = jsonwriter.Write(w, map[string]bool{"success": true})
}

// redirectError consumes the state cookie and sends the browser to the
// error page with a machine-readable code.
func (h *AuthHandlers) redirectError(w http.ResponseWriter, r *http.Request, code, description string) {
	cookie.ClearState(w)

	params := url.Values{}
	params.Set("error", code)
	if description != "" {
		params.Set("error_description", description)
	}
	http.Redirect(w, r, h.errorURL+"?"+params.Encode(), http.StatusFound)
}

// recordEvent appends an audit event with request metadata. Audit
// failures are logged, never surfaced.
func (h *AuthHandlers) recordEvent(r *http.Request, event storage.AuthEvent) {
	event.IP = clientIP(r)
	event.UserAgent = r.UserAgent()
	if err := h.store.RecordAuthEvent(r.Context(), event); err != nil {
		log.LogError("Failed to record auth event %s: %v", event.Kind, err)
	}
}

// clientIP extracts the originating client IP, honoring the first
// X-Forwarded-For hop when present.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
