package idp

import (
	"context"
	"fmt"

	"github.com/FreedomSnow/sinoname/internal/emailutil"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig configures a generic OIDC provider.
type OIDCConfig struct {
	// Issuer URL used for OIDC discovery.
	Issuer string

	// OAuth client configuration.
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// AllowedDomains restricts which email domains may sign in (empty = all).
	AllowedDomains []string
}

// OIDCProvider implements the Provider interface for any OIDC-compliant
// identity provider, using discovery for endpoint configuration.
type OIDCProvider struct {
	config         oauth2.Config
	provider       *oidc.Provider
	allowedDomains []string
}

// oidcClaims are the standard profile claims we read from the userinfo response.
type oidcClaims struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// NewOIDCProvider creates an OIDC provider via discovery against cfg.Issuer.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("issuer is required for OIDC discovery")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider %q: %w", cfg.Issuer, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCProvider{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint:     provider.Endpoint(),
		},
		provider:       provider,
		allowedDomains: cfg.AllowedDomains,
	}, nil
}

// Type returns the provider type.
func (p *OIDCProvider) Type() string {
	return "oidc"
}

// AuthURL generates the authorization URL.
func (p *OIDCProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.ApprovalForce)
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *OIDCProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

// UserInfo fetches user information from the provider's userinfo endpoint.
func (p *OIDCProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}

	var claims oidcClaims
	if err := userInfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode user info claims: %w", err)
	}

	domain := emailutil.ExtractDomain(userInfo.Email)
	if err := ValidateDomain(domain, p.allowedDomains); err != nil {
		return nil, err
	}

	return &Identity{
		ProviderType:  "oidc",
		Subject:       userInfo.Subject,
		Email:         userInfo.Email,
		EmailVerified: userInfo.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
		Domain:        domain,
	}, nil
}
