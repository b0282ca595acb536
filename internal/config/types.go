package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed.
//
// In config files a Secret must be written as an environment variable
// reference: {"$env": "VAR_NAME"}. The explicit JSON syntax was chosen over
// bash-like $VAR substitution so config files are safe to handle in shell
// contexts and a literal $ in a value is never misinterpreted.
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// UnmarshalJSON resolves {"$env": "VAR_NAME"} references at load time.
// Plain strings are rejected so secrets never live in config files.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var ref struct {
		Env string `json:"$env"`
	}
	if err := json.Unmarshal(data, &ref); err != nil || ref.Env == "" {
		return fmt.Errorf("secret values must use {\"$env\": \"VAR_NAME\"} format")
	}

	value, ok := os.LookupEnv(ref.Env)
	if !ok {
		return fmt.Errorf("environment variable %s is not set", ref.Env)
	}
	*s = Secret(value)
	return nil
}

// Duration wraps time.Duration so config files can use "30s"/"5m" strings
type Duration time.Duration

// UnmarshalJSON parses a duration string
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// StorageKind selects the storage backend
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageFirestore StorageKind = "firestore"
)

// Config is the root configuration for the sinoname service
type Config struct {
	Server ServerConfig  `json:"server"`
	Auth   AuthConfig    `json:"auth"`
	Naming *NamingConfig `json:"naming,omitempty"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	// BaseURL is the externally visible origin of this service
	BaseURL string `json:"baseURL"`
	// Addr is the listen address (e.g. ":8080")
	Addr string `json:"addr"`
	// AllowedOrigins for CORS on the JSON API endpoints
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// IDPConfig configures the upstream identity provider
type IDPConfig struct {
	// Provider is "google" or "oidc"
	Provider     string `json:"provider"`
	ClientID     string `json:"clientId"`
	ClientSecret Secret `json:"clientSecret"`
	RedirectURI  string `json:"redirectUri"`
	// Issuer is required for the generic "oidc" provider (discovery URL)
	Issuer string   `json:"issuer,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// AuthConfig configures the login flow and session cookies
type AuthConfig struct {
	IDP IDPConfig `json:"idp"`

	// EncryptionKey seals session cookies. Must be exactly 32 bytes.
	EncryptionKey Secret `json:"encryptionKey"`
	// EncryptionKeyID identifies the active sealing key (for rotation)
	EncryptionKeyID string `json:"encryptionKeyId,omitempty"`

	// AllowedDomains restricts which email domains may sign in (empty = all)
	AllowedDomains []string `json:"allowedDomains,omitempty"`

	// SuccessPath and ErrorPath are the browser destinations after a callback
	SuccessPath string `json:"successPath,omitempty"`
	ErrorPath   string `json:"errorPath,omitempty"`

	// AdminEmails lists accounts allowed to call the /api/admin
	// endpoints. Empty disables the admin surface entirely.
	AdminEmails []string `json:"adminEmails,omitempty"`

	Storage             StorageKind `json:"storage,omitempty"`
	GCPProject          string      `json:"gcpProject,omitempty"`
	FirestoreDatabase   string      `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string      `json:"firestoreCollection,omitempty"`
}

// NamingConfig configures the AI naming backend client
type NamingConfig struct {
	BaseURL string   `json:"baseURL"`
	APIKey  Secret   `json:"apiKey"`
	Timeout Duration `json:"timeout,omitempty"`
}
