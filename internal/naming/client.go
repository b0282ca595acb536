package naming

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FreedomSnow/sinoname/internal/config"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// defaultTimeout bounds a single upstream naming request
const defaultTimeout = 30 * time.Second

// maxErrorBodyLen caps how much of an upstream error body we keep
const maxErrorBodyLen = 4096

// DefaultStyles are the naming styles requested when the caller does
// not specify any.
var DefaultStyles = []string{"classic", "modern", "poetic"}

// ErrInvalidRequest wraps request validation failures so callers can
// map them to a 400 without inspecting validator internals.
var ErrInvalidRequest = errors.New("invalid request")

// GenerateRequest asks for Chinese name suggestions derived from an
// English name.
type GenerateRequest struct {
	EnglishName string   `json:"englishName" validate:"required,max=100"`
	Gender      string   `json:"gender,omitempty" validate:"omitempty,oneof=male female neutral"`
	Styles      []string `json:"styles,omitempty" validate:"omitempty,max=5,dive,oneof=classic modern poetic business"`
	Count       int      `json:"count,omitempty" validate:"omitempty,min=1,max=10"`
}

// CustomizeRequest refines a suggestion with free-form requirements.
type CustomizeRequest struct {
	EnglishName  string `json:"englishName" validate:"required,max=100"`
	BaseName     string `json:"baseName,omitempty" validate:"omitempty,max=50"`
	Requirements string `json:"requirements" validate:"required,max=500"`
}

// Suggestion is a single generated Chinese name.
type Suggestion struct {
	Chinese string `json:"chinese"`
	Pinyin  string `json:"pinyin"`
	Meaning string `json:"meaning"`
	Style   string `json:"style,omitempty"`
}

// GenerateResult groups suggestions across all requested styles.
type GenerateResult struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// UpstreamError is returned when the naming backend answers with a
// non-2xx status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("naming backend returned status %d: %s", e.StatusCode, e.Body)
}

// Client calls the AI naming backend. Generation fans out one request
// per style so slow styles don't serialize behind each other.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	validate   *validator.Validate
}

// NewClient creates a naming client from config.
func NewClient(cfg *config.NamingConfig) *Client {
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     string(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Generate validates the request and fetches suggestions for every
// requested style concurrently. Results preserve style order.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	styles := req.Styles
	if len(styles) == 0 {
		styles = DefaultStyles
	}

	perStyle := make([][]Suggestion, len(styles))
	group, ctx := errgroup.WithContext(ctx)
	for i, style := range styles {
		i, style := i, style
		group.Go(func() error {
			styleReq := req
			styleReq.Styles = []string{style}

			var result GenerateResult
			if err := c.post(ctx, "/v1/names/generate", styleReq, &result); err != nil {
				return fmt.Errorf("style %s: %w", style, err)
			}
			for j := range result.Suggestions {
				if result.Suggestions[j].Style == "" {
					result.Suggestions[j].Style = style
				}
			}
			perStyle[i] = result.Suggestions
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	combined := &GenerateResult{}
	for _, suggestions := range perStyle {
		combined.Suggestions = append(combined.Suggestions, suggestions...)
	}
	return combined, nil
}

// Customize validates the request and asks the backend to refine a name
// against free-form requirements.
func (c *Client) Customize(ctx context.Context, req CustomizeRequest) (*Suggestion, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var suggestion Suggestion
	if err := c.post(ctx, "/v1/names/customize", req, &suggestion); err != nil {
		return nil, err
	}
	return &suggestion, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("naming backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return &UpstreamError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(errBody))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode naming response: %w", err)
	}
	return nil
}
