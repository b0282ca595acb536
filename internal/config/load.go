package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Defaults applied when the config file leaves fields unset
const (
	DefaultSuccessPath     = "/auth/success"
	DefaultErrorPath       = "/auth/error"
	DefaultEncryptionKeyID = "v1"
)

// Load loads and validates the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env var references immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&config)

	if err := Validate(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func applyDefaults(config *Config) {
	auth := &config.Auth
	if auth.SuccessPath == "" {
		auth.SuccessPath = DefaultSuccessPath
	}
	if auth.ErrorPath == "" {
		auth.ErrorPath = DefaultErrorPath
	}
	if auth.EncryptionKeyID == "" {
		auth.EncryptionKeyID = DefaultEncryptionKeyID
	}
	if auth.Storage == "" {
		auth.Storage = StorageMemory
	}
}

// Validate validates the resolved configuration
func Validate(config *Config) error {
	if config.Server.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if err := validateAuth(&config.Auth); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if naming := config.Naming; naming != nil {
		if naming.BaseURL == "" {
			return fmt.Errorf("naming.baseURL is required when naming is configured")
		}
	}

	return nil
}

func validateAuth(auth *AuthConfig) error {
	switch auth.IDP.Provider {
	case "google":
	case "oidc":
		if auth.IDP.Issuer == "" {
			return fmt.Errorf("idp.issuer is required for the oidc provider")
		}
	default:
		return fmt.Errorf("idp.provider must be \"google\" or \"oidc\" (got %q)", auth.IDP.Provider)
	}

	if auth.IDP.ClientID == "" {
		return fmt.Errorf("idp.clientId is required")
	}
	if auth.IDP.ClientSecret == "" {
		return fmt.Errorf("idp.clientSecret is required")
	}
	if auth.IDP.RedirectURI == "" {
		return fmt.Errorf("idp.redirectUri is required")
	}

	if len(auth.EncryptionKey) != 32 {
		return fmt.Errorf("encryptionKey must be exactly 32 characters (got %d). Generate with: openssl rand -base64 32 | head -c 32", len(auth.EncryptionKey))
	}

	switch auth.Storage {
	case StorageMemory:
	case StorageFirestore:
		if auth.GCPProject == "" {
			return fmt.Errorf("gcpProject is required when using firestore storage")
		}
	default:
		return fmt.Errorf("storage must be \"memory\" or \"firestore\" (got %q)", auth.Storage)
	}

	return nil
}
