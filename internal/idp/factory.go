package idp

import (
	"context"
	"fmt"

	"github.com/FreedomSnow/sinoname/internal/config"
)

// NewProvider creates the identity provider selected by the auth config.
func NewProvider(ctx context.Context, auth *config.AuthConfig) (Provider, error) {
	idp := auth.IDP

	switch idp.Provider {
	case "google":
		return NewGoogleProvider(
			idp.ClientID,
			string(idp.ClientSecret),
			idp.RedirectURI,
			auth.AllowedDomains,
		), nil
	case "oidc":
		return NewOIDCProvider(ctx, OIDCConfig{
			Issuer:         idp.Issuer,
			ClientID:       idp.ClientID,
			ClientSecret:   string(idp.ClientSecret),
			RedirectURI:    idp.RedirectURI,
			Scopes:         idp.Scopes,
			AllowedDomains: auth.AllowedDomains,
		})
	default:
		return nil, fmt.Errorf("unsupported identity provider: %s", idp.Provider)
	}
}
